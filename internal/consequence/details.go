package consequence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/forfeit-backend/internal/domain"
)

// Details is the JSON payload of a consequence record. Kind selects which of the
// channel payloads is populated.
type Details struct {
	Kind     types.ConsequenceType `json:"kind"`
	Monetary *MonetaryDetails      `json:"monetary,omitempty"`
	Email    *EmailDetails         `json:"email,omitempty"`
	Social   *SocialDetails        `json:"social,omitempty"`
	Spared   *SparedDetails        `json:"spared,omitempty"`
	Failure  *FailureDetails       `json:"failure,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
}

type MonetaryDetails struct {
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency,omitempty"`
	CharityID      string `json:"charity_id"`
	TransferID     string `json:"transfer_id,omitempty"`
	BalanceDebited bool   `json:"balance_debited"`
}

type EmailDetails struct {
	AssetID   uuid.UUID `json:"asset_id"`
	ContactID uuid.UUID `json:"contact_id"`
	MessageID string    `json:"message_id,omitempty"`
}

type SocialDetails struct {
	Provider       string `json:"provider"`
	Handle         string `json:"handle,omitempty"`
	PostID         string `json:"post_id,omitempty"`
	MediaID        string `json:"media_id,omitempty"`
	TokenRefreshed bool   `json:"token_refreshed,omitempty"`
}

type SparedDetails struct {
	FailureType types.FailureType `json:"failure_type"`
	Configured  []string          `json:"configured,omitempty"`
}

type FailureDetails struct {
	Class  string `json:"class"`
	Reason string `json:"reason"`
}

func (d *Details) warn(msg string) {
	d.Warnings = append(d.Warnings, msg)
}

func (d *Details) JSON() datatypes.JSON {
	raw, err := json.Marshal(d)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(raw)
}

func DecodeDetails(raw datatypes.JSON) (Details, error) {
	var d Details
	if len(raw) == 0 {
		return d, nil
	}
	err := json.Unmarshal(raw, &d)
	return d, err
}

// Summary describes a completed record in words fit for the user. Failed and
// spared records have no summary; channel errors are never shown to users.
func Summary(rec *types.ConsequenceRecord) (string, bool) {
	if rec == nil || rec.ExecutionStatus != types.ExecutionCompleted {
		return "", false
	}
	d, err := DecodeDetails(rec.Details)
	if err != nil {
		return "", false
	}
	switch rec.Type {
	case types.ConsequenceMonetary:
		if d.Monetary == nil {
			return "", false
		}
		return fmt.Sprintf("%s was transferred to %s.", FormatAmount(d.Monetary.AmountCents, d.Monetary.Currency), d.Monetary.CharityID), true
	case types.ConsequenceHumiliationEmail:
		return "Your file was emailed to one of your accountability contacts.", true
	case types.ConsequenceHumiliationSocial:
		return "A post was published on your connected X account.", true
	}
	return "", false
}

// FormatAmount renders minor units without any currency conversion.
func FormatAmount(cents int64, currency string) string {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		cur = "USD"
	}
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, cur)
}
