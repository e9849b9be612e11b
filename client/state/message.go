package state

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation. The history is append-only:
// messages are never edited, reordered, or removed once appended.
// Assistant content is an opaque string; any markup in it is the
// presentation layer's problem.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Products  []Product `json:"products,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage builds a user turn with no attachments.
func NewUserMessage(content string, now time.Time) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		CreatedAt: now.UTC(),
	}
}

// NewAssistantMessage builds an assistant turn carrying the recommended
// products returned by the remote service.
func NewAssistantMessage(content string, products []Product, now time.Time) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		Products:  append([]Product(nil), products...),
		CreatedAt: now.UTC(),
	}
}

// Product is a read-only catalog snapshot attached to assistant replies.
// The client never mutates one; its price is frozen into a cart line at
// add time.
type Product struct {
	PartNumber             string  `json:"part_number"`
	ManufacturerPartNumber string  `json:"manufacturer_part_number,omitempty"`
	Name                   string  `json:"name"`
	Brand                  string  `json:"brand,omitempty"`
	ApplianceType          string  `json:"appliance_type,omitempty"`
	Price                  float64 `json:"price"`
	InStock                bool    `json:"in_stock"`
	Rating                 float64 `json:"rating,omitempty"`
	ReviewCount            int     `json:"review_count,omitempty"`
	InstallDifficulty      string  `json:"install_difficulty,omitempty"`
	Description            string  `json:"description,omitempty"`
}
