// Package donation decodes DOTnation contract events from the
// human-readable positional payloads the monitor ingests. The parsers
// are pure functions over field slices.
package donation

// Contract event names emitted by the DOTnation ink! contracts, as
// they appear in a ContractEmitted payload.
const (
	EventCampaignCreated      = "CampaignCreated"
	EventDonationReceived     = "DonationReceived"
	EventFundsWithdrawn       = "FundsWithdrawn"
	EventRefundProcessed      = "RefundProcessed"
	EventCampaignStateChanged = "CampaignStateChanged"
	EventDonationNftMinted    = "DonationNftMinted"
	EventNftTransfer          = "Transfer"
)

// CampaignCreated reports a new fundraising campaign. Goal is a
// balance in plancks, kept as a decimal string because chain balances
// exceed uint64. Deadline is a unix timestamp in milliseconds. Owner
// is empty when the emitting contract does not include it.
type CampaignCreated struct {
	CampaignID uint32 `json:"campaign_id"`
	Owner      string `json:"owner,omitempty"`
	Goal       string `json:"goal"`
	Deadline   uint64 `json:"deadline"`
}

// DonationReceived reports a donation to a campaign. CurrentTotal is
// empty when the emitting contract predates the running-total field.
type DonationReceived struct {
	CampaignID   uint32 `json:"campaign_id"`
	Donor        string `json:"donor"`
	Amount       string `json:"amount"`
	CurrentTotal string `json:"current_total,omitempty"`
}

// FundsWithdrawn reports a campaign payout. FeeAmount is empty when
// the emitting contract predates platform fees.
type FundsWithdrawn struct {
	CampaignID  uint32 `json:"campaign_id"`
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
	FeeAmount   string `json:"fee_amount,omitempty"`
}

// RefundProcessed reports a donation returned after a failed campaign.
type RefundProcessed struct {
	CampaignID uint32 `json:"campaign_id"`
	Donor      string `json:"donor"`
	Amount     string `json:"amount"`
}

// CampaignStateChanged reports a campaign lifecycle transition.
type CampaignStateChanged struct {
	CampaignID uint32 `json:"campaign_id"`
	State      string `json:"state"`
	ChangedAt  uint64 `json:"changed_at"`
}

// DonationNftMinted reports the receipt NFT minted for a donation.
type DonationNftMinted struct {
	TokenID    uint32 `json:"token_id"`
	Owner      string `json:"owner"`
	CampaignID uint32 `json:"campaign_id"`
	Amount     string `json:"amount"`
}

// NftTransfer reports a receipt NFT changing hands, the PSP34 transfer
// event the NFT contract emits alongside DonationNftMinted. From is
// empty on mints and To is empty on burns.
type NftTransfer struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	TokenID uint32 `json:"token_id"`
}
