package benefit

import "time"

// Type categorizes a benefit.
type Type int

const (
	TypeVision Type = iota
	TypeHousing
	TypeHealthcare
	TypeEducation
	TypeFood
	TypeSupportServices
	TypeClothing
	TypeCounseling
	TypeVocationalTraining
	TypeChildCare
	TypeOther
)

func (t Type) String() string {
	switch t {
	case TypeVision:
		return "vision"
	case TypeHousing:
		return "housing"
	case TypeHealthcare:
		return "healthcare"
	case TypeEducation:
		return "education"
	case TypeFood:
		return "food"
	case TypeSupportServices:
		return "support_services"
	case TypeClothing:
		return "clothing"
	case TypeCounseling:
		return "counseling"
	case TypeVocationalTraining:
		return "vocational_training"
	case TypeChildCare:
		return "child_care"
	default:
		return "other"
	}
}

// ParseType validates an integer benefit type received over the wire.
func ParseType(v int) (Type, bool) {
	if v < int(TypeVision) || v > int(TypeOther) {
		return 0, false
	}
	return Type(v), true
}

// Location is a place where benefits are offered.
type Location struct {
	ID              int64
	Name            string
	City            string
	Region          string
	Address         string
	Latitude        float64
	Longitude       float64
	ServiceRadiusKm float64
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

// Definition describes one benefit. PrimaryLocationID always references an
// existing Location and is also present in the location map.
type Definition struct {
	ID                int64
	Name              string
	Description       string
	Type              Type
	Cost              float64
	Provider          string
	PolicyDetails     string
	IsActive          bool
	PrimaryLocationID int64
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

// LocationMap links a benefit to a location it is offered at. Uniqueness of
// (BenefitID, LocationID) is enforced by the writer.
type LocationMap struct {
	ID         int64
	BenefitID  int64
	LocationID int64
	AddedAt    time.Time
	RemovedAt  *time.Time
}

// Summary is the shape returned by proximity queries.
type Summary struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        Type    `json:"type"`
	Cost        float64 `json:"cost"`
}
