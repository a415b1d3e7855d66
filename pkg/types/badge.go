package types

// Badge render slots. BadgeFront is the compact front-of-card badge;
// BadgeDetail is the card back detail badge.
const (
	BadgeFront  = "card-badges"
	BadgeDetail = "card-detail-badges"
)

// Badge colors.
const (
	BadgeColorGreen     = "green"
	BadgeColorLightGray = "light-gray"
)

// Badge icons.
const (
	BadgeIconUp   = "icon-up"   // child badge: points at the EPIC above
	BadgeIconDown = "icon-down" // parent badge: points at the tasks below
)

// Badge is the read-only projection of a relation for one render slot.
// A zero Badge means nothing to show. ShowCardShortLink carries the tap
// target of detail badges that open the related card.
type Badge struct {
	Icon              string `json:"icon,omitempty"`
	Title             string `json:"title,omitempty"`
	Text              string `json:"text"`
	Color             string `json:"color,omitempty"`
	ShowCardShortLink string `json:"showCard,omitempty"`
}

// Empty reports whether the badge renders nothing.
func (b Badge) Empty() bool {
	return b.Text == "" && b.Title == ""
}
