package donation

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse decodes the positional fields of a named DOTnation contract
// event. Unknown names return (nil, nil) so callers can skip events
// from other contracts without treating them as decode faults.
func Parse(name string, fields []string) (any, error) {
	switch name {
	case EventCampaignCreated:
		ev, err := ParseCampaignCreated(fields)
		if err != nil {
			return nil, err
		}
		return ev, nil
	case EventDonationReceived:
		ev, err := ParseDonationReceived(fields)
		if err != nil {
			return nil, err
		}
		return ev, nil
	case EventFundsWithdrawn:
		ev, err := ParseFundsWithdrawn(fields)
		if err != nil {
			return nil, err
		}
		return ev, nil
	case EventRefundProcessed:
		ev, err := ParseRefundProcessed(fields)
		if err != nil {
			return nil, err
		}
		return ev, nil
	case EventCampaignStateChanged:
		ev, err := ParseCampaignStateChanged(fields)
		if err != nil {
			return nil, err
		}
		return ev, nil
	case EventDonationNftMinted:
		ev, err := ParseDonationNftMinted(fields)
		if err != nil {
			return nil, err
		}
		return ev, nil
	case EventNftTransfer:
		ev, err := ParseNftTransfer(fields)
		if err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, nil
	}
}

// ParseCampaignCreated decodes [campaign_id, owner, goal, deadline].
// Contracts that do not emit the owner send the three-field
// [campaign_id, goal, deadline] shape instead; Owner stays empty for
// those.
func ParseCampaignCreated(fields []string) (*CampaignCreated, error) {
	if err := checkArity(EventCampaignCreated, fields, 3, 4); err != nil {
		return nil, err
	}
	id, err := parseID(fields[0], "campaign_id")
	if err != nil {
		return nil, err
	}
	ev := &CampaignCreated{CampaignID: id}
	rest := fields[1:]
	if len(fields) == 4 {
		owner, err := parseAccount(fields[1], "owner")
		if err != nil {
			return nil, err
		}
		ev.Owner = owner
		rest = fields[2:]
	}
	goal, err := parseBalance(rest[0], "goal")
	if err != nil {
		return nil, err
	}
	deadline, err := parseTimestamp(rest[1], "deadline")
	if err != nil {
		return nil, err
	}
	ev.Goal = goal
	ev.Deadline = deadline
	return ev, nil
}

// ParseDonationReceived decodes [campaign_id, donor, amount] with an
// optional trailing current_total field.
func ParseDonationReceived(fields []string) (*DonationReceived, error) {
	if err := checkArity(EventDonationReceived, fields, 3, 4); err != nil {
		return nil, err
	}
	id, err := parseID(fields[0], "campaign_id")
	if err != nil {
		return nil, err
	}
	donor, err := parseAccount(fields[1], "donor")
	if err != nil {
		return nil, err
	}
	amount, err := parseBalance(fields[2], "amount")
	if err != nil {
		return nil, err
	}
	ev := &DonationReceived{CampaignID: id, Donor: donor, Amount: amount}
	if len(fields) == 4 {
		total, err := parseBalance(fields[3], "current_total")
		if err != nil {
			return nil, err
		}
		ev.CurrentTotal = total
	}
	return ev, nil
}

// ParseFundsWithdrawn decodes [campaign_id, beneficiary, amount] with
// an optional trailing fee_amount field.
func ParseFundsWithdrawn(fields []string) (*FundsWithdrawn, error) {
	if err := checkArity(EventFundsWithdrawn, fields, 3, 4); err != nil {
		return nil, err
	}
	id, err := parseID(fields[0], "campaign_id")
	if err != nil {
		return nil, err
	}
	beneficiary, err := parseAccount(fields[1], "beneficiary")
	if err != nil {
		return nil, err
	}
	amount, err := parseBalance(fields[2], "amount")
	if err != nil {
		return nil, err
	}
	ev := &FundsWithdrawn{CampaignID: id, Beneficiary: beneficiary, Amount: amount}
	if len(fields) == 4 {
		fee, err := parseBalance(fields[3], "fee_amount")
		if err != nil {
			return nil, err
		}
		ev.FeeAmount = fee
	}
	return ev, nil
}

// ParseRefundProcessed decodes [campaign_id, donor, amount].
func ParseRefundProcessed(fields []string) (*RefundProcessed, error) {
	if err := checkArity(EventRefundProcessed, fields, 3, 3); err != nil {
		return nil, err
	}
	id, err := parseID(fields[0], "campaign_id")
	if err != nil {
		return nil, err
	}
	donor, err := parseAccount(fields[1], "donor")
	if err != nil {
		return nil, err
	}
	amount, err := parseBalance(fields[2], "amount")
	if err != nil {
		return nil, err
	}
	return &RefundProcessed{CampaignID: id, Donor: donor, Amount: amount}, nil
}

// ParseCampaignStateChanged decodes [campaign_id, state, changed_at].
func ParseCampaignStateChanged(fields []string) (*CampaignStateChanged, error) {
	if err := checkArity(EventCampaignStateChanged, fields, 3, 3); err != nil {
		return nil, err
	}
	id, err := parseID(fields[0], "campaign_id")
	if err != nil {
		return nil, err
	}
	state := strings.TrimSpace(fields[1])
	if state == "" {
		return nil, fmt.Errorf("%s: empty state field", EventCampaignStateChanged)
	}
	changedAt, err := parseTimestamp(fields[2], "changed_at")
	if err != nil {
		return nil, err
	}
	return &CampaignStateChanged{CampaignID: id, State: state, ChangedAt: changedAt}, nil
}

// ParseDonationNftMinted decodes [token_id, owner, campaign_id, amount].
func ParseDonationNftMinted(fields []string) (*DonationNftMinted, error) {
	if err := checkArity(EventDonationNftMinted, fields, 4, 4); err != nil {
		return nil, err
	}
	tokenID, err := parseID(fields[0], "token_id")
	if err != nil {
		return nil, err
	}
	owner, err := parseAccount(fields[1], "owner")
	if err != nil {
		return nil, err
	}
	campaignID, err := parseID(fields[2], "campaign_id")
	if err != nil {
		return nil, err
	}
	amount, err := parseBalance(fields[3], "amount")
	if err != nil {
		return nil, err
	}
	return &DonationNftMinted{
		TokenID:    tokenID,
		Owner:      owner,
		CampaignID: campaignID,
		Amount:     amount,
	}, nil
}

// ParseNftTransfer decodes [from, to, token_id]. From and To are
// optional accounts: mints carry no sender and burns no recipient, but
// at least one side must be set.
func ParseNftTransfer(fields []string) (*NftTransfer, error) {
	if err := checkArity(EventNftTransfer, fields, 3, 3); err != nil {
		return nil, err
	}
	from := optionalAccount(fields[0])
	to := optionalAccount(fields[1])
	if from == "" && to == "" {
		return nil, fmt.Errorf("%s: from and to are both empty", EventNftTransfer)
	}
	tokenID, err := parseID(fields[2], "token_id")
	if err != nil {
		return nil, err
	}
	return &NftTransfer{From: from, To: to, TokenID: tokenID}, nil
}

func checkArity(name string, fields []string, min, max int) error {
	if len(fields) < min || len(fields) > max {
		if min == max {
			return fmt.Errorf("%s: got %d fields, want %d", name, len(fields), min)
		}
		return fmt.Errorf("%s: got %d fields, want %d to %d", name, len(fields), min, max)
	}
	return nil
}

func parseID(field, label string) (uint32, error) {
	v, err := strconv.ParseUint(normalizeNumber(field), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", label, field, err)
	}
	return uint32(v), nil
}

func parseTimestamp(field, label string) (uint64, error) {
	v, err := strconv.ParseUint(normalizeNumber(field), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", label, field, err)
	}
	return v, nil
}

// parseBalance validates a chain balance and returns it as a
// normalized decimal string. Balances are u128 on chain, so they stay
// strings on this side.
func parseBalance(field, label string) (string, error) {
	s := normalizeNumber(field)
	if s == "" {
		return "", fmt.Errorf("parsing %s: empty field", label)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("parsing %s %q: not a decimal number", label, field)
		}
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		s = "0"
	}
	return s, nil
}

func parseAccount(field, label string) (string, error) {
	s := strings.TrimSpace(field)
	if s == "" {
		return "", fmt.Errorf("parsing %s: empty account field", label)
	}
	return s, nil
}

// optionalAccount decodes an Option<AccountId> field. The node renders
// an absent account as null or "None" depending on the encoding.
func optionalAccount(field string) string {
	s := strings.TrimSpace(field)
	if s == "None" || s == "null" {
		return ""
	}
	return s
}

// normalizeNumber strips the thousands separators the node's
// human-readable encoding inserts, e.g. "1,000,000" or "1_000_000".
func normalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	return strings.ReplaceAll(s, "_", "")
}
