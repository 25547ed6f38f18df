package validation

import "time"

// Common validation rules and request structs

// CreateDeliveryRequest represents a delivery creation request with validation rules
type CreateDeliveryRequest struct {
	PickupLatitude         float64    `json:"pickup_latitude" validate:"required,latitude"`
	PickupLongitude        float64    `json:"pickup_longitude" validate:"required,longitude"`
	PickupAddr             string     `json:"pickup_address" validate:"required,min=5,max=500"`
	DropoffLatitude        float64    `json:"dropoff_latitude" validate:"required,latitude"`
	DropoffLongitude       float64    `json:"dropoff_longitude" validate:"required,longitude"`
	DropoffAddr            string     `json:"dropoff_address" validate:"required,min=5,max=500"`
	PickupAccessCode       string     `json:"pickup_access_code" validate:"omitempty,max=50"`
	DropoffAccessCode      string     `json:"dropoff_access_code" validate:"omitempty,max=50"`
	PackageTypeID          string     `json:"package_type_id" validate:"required,uuid"`
	WeightLbs              float64    `json:"weight_lbs" validate:"required,gt=0,lte=500"`
	Priority               string     `json:"priority" validate:"required,delivery_priority"`
	Description            string     `json:"description" validate:"omitempty,max=1000"`
	Fragile                bool       `json:"fragile"`
	RequiresSignature      bool       `json:"requires_signature"`
	RequiresIDVerification bool       `json:"requires_id_verification"`
	RequiresPhotoProof     bool       `json:"requires_photo_proof"`
	SpecialInstructions    string     `json:"special_instructions" validate:"omitempty,max=1000"`
	PackagePhotoURL        string     `json:"package_photo_url" validate:"omitempty,url,max=2048"`
	RecipientName          string     `json:"recipient_name" validate:"required,min=1,max=200"`
	RecipientPhone         string     `json:"recipient_phone" validate:"required,phone"`
	RecipientEmail         string     `json:"recipient_email" validate:"omitempty,email"`
	PaymentMethodID        string     `json:"payment_method_id" validate:"required,min=1,max=100"`
	PromoCode              string     `json:"promo_code" validate:"omitempty,alphanum,max=20"`
	ScheduledPickupTime    *time.Time `json:"scheduled_pickup_time" validate:"omitempty"`
}

// EstimateRequest is the dry-run pricing request; it shares the coordinate and
// package rules of delivery creation but carries no recipient or payment data.
type EstimateRequest struct {
	PickupLatitude   float64 `json:"pickup_latitude" validate:"required,latitude"`
	PickupLongitude  float64 `json:"pickup_longitude" validate:"required,longitude"`
	DropoffLatitude  float64 `json:"dropoff_latitude" validate:"required,latitude"`
	DropoffLongitude float64 `json:"dropoff_longitude" validate:"required,longitude"`
	PackageTypeID    string  `json:"package_type_id" validate:"required,uuid"`
	WeightLbs        float64 `json:"weight_lbs" validate:"required,gt=0,lte=500"`
	Priority         string  `json:"priority" validate:"required,delivery_priority"`
	PromoCode        string  `json:"promo_code" validate:"omitempty,alphanum,max=20"`
}

// UpdateLocationRequest represents a courier location update
type UpdateLocationRequest struct {
	Latitude     float64    `json:"latitude" validate:"required,latitude"`
	Longitude    float64    `json:"longitude" validate:"required,longitude"`
	Accuracy     float64    `json:"accuracy" validate:"omitempty,gte=0"`
	Heading      float64    `json:"heading" validate:"omitempty,gte=0,lt=360"`
	SpeedMps     float64    `json:"speed_mps" validate:"omitempty,gte=0"`
	BatteryLevel *float64   `json:"battery_level" validate:"omitempty,gte=0,lte=100"`
	SampledAt    *time.Time `json:"sampled_at" validate:"omitempty"`
}

// UpdateDeliveryStatusRequest represents a courier-driven lifecycle transition
type UpdateDeliveryStatusRequest struct {
	Status        string   `json:"status" validate:"required,delivery_status"`
	Latitude      *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude     *float64 `json:"longitude" validate:"omitempty,longitude"`
	Notes         string   `json:"notes" validate:"omitempty,max=500"`
	ProofPhotoURL string   `json:"proof_photo_url" validate:"omitempty,url,max=2048"`
	SignatureURL  string   `json:"signature_url" validate:"omitempty,url,max=2048"`
	IDVerified    bool     `json:"id_verified"`
}

// RatingRequest represents a delivery rating request. The timeliness,
// communication and handling axes apply to sender-authored ratings only.
type RatingRequest struct {
	Rating        int    `json:"rating" validate:"required,gte=1,lte=5"`
	Timeliness    int    `json:"timeliness" validate:"omitempty,gte=1,lte=5"`
	Communication int    `json:"communication" validate:"omitempty,gte=1,lte=5"`
	Handling      int    `json:"handling" validate:"omitempty,gte=1,lte=5"`
	Comment       string `json:"comment" validate:"omitempty,max=1000"`
}

// SendMessageRequest posts a chat message on a delivery thread.
type SendMessageRequest struct {
	Content       string  `json:"content" validate:"required,min=1,max=2000"`
	AttachmentURL *string `json:"attachment_url" validate:"omitempty,url,max=2048"`
}

// ReportIssueRequest opens an issue on a delivery.
type ReportIssueRequest struct {
	IssueType   string `json:"issue_type" validate:"required,oneof=damaged late lost courier sender payment other"`
	Description string `json:"description" validate:"required,min=10,max=2000"`
}

// CreateCourierRequest represents a courier profile creation request
type CreateCourierRequest struct {
	UserID             string  `json:"user_id" validate:"required,uuid"`
	VehicleType        string  `json:"vehicle_type" validate:"required,vehicle_type"`
	MaxWeightLbs       float64 `json:"max_weight_lbs" validate:"required,gt=0,lte=2000"`
	ServiceRadiusMiles float64 `json:"service_radius_miles" validate:"required,gt=0,lte=200"`
}

// UpdateCourierRequest carries a partial courier profile update; nil fields
// are left unchanged.
type UpdateCourierRequest struct {
	VehicleType        *string  `json:"vehicle_type" validate:"omitempty,vehicle_type"`
	MaxWeightLbs       *float64 `json:"max_weight_lbs" validate:"omitempty,gt=0,lte=2000"`
	ServiceRadiusMiles *float64 `json:"service_radius_miles" validate:"omitempty,gt=0,lte=200"`
}

// UpdateAvailabilityRequest toggles courier availability, optionally carrying
// the courier's position at the moment of going online.
type UpdateAvailabilityRequest struct {
	IsAvailable *bool    `json:"is_available" validate:"required"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// CreatePromoCodeRequest represents a promo code creation request
type CreatePromoCodeRequest struct {
	Code               string    `json:"code" validate:"required,alphanum,min=3,max=20"`
	DiscountType       string    `json:"discount_type" validate:"required,discount_type"`
	DiscountValue      float64   `json:"discount_value" validate:"required,gt=0"`
	UsageLimit         int       `json:"usage_limit" validate:"omitempty,gte=1"`
	MaximumDiscount    float64   `json:"maximum_discount" validate:"omitempty,gt=0"`
	MinimumOrderAmount float64   `json:"minimum_order_amount" validate:"omitempty,gte=0"`
	IsOneTime          bool      `json:"is_one_time"`
	IsFirstTimeUser    bool      `json:"is_first_time_user"`
	ValidFrom          time.Time `json:"valid_from" validate:"required"`
	ValidUntil         time.Time `json:"valid_until" validate:"required"`
}

// PaginationRequest represents common pagination parameters
type PaginationRequest struct {
	Limit   int    `json:"limit" validate:"omitempty,gte=1,lte=100"`
	Offset  int    `json:"offset" validate:"omitempty,gte=0"`
	SortBy  string `json:"sort_by" validate:"omitempty,alpha"`
	SortDir string `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

// ValidateDeliveryRequest validates a delivery request and checks business rules
func ValidateDeliveryRequest(req *CreateDeliveryRequest) error {
	// First, validate struct tags
	if err := ValidateStruct(req); err != nil {
		return err
	}

	// Additional business logic validation
	validationErr := &ValidationError{Errors: make(map[string]string)}

	// Check if pickup and dropoff are not the same
	if req.PickupLatitude == req.DropoffLatitude && req.PickupLongitude == req.DropoffLongitude {
		validationErr.AddError("location", "Pickup and dropoff locations cannot be the same")
	}

	// Check if scheduled pickup is in the future
	if req.ScheduledPickupTime != nil && req.ScheduledPickupTime.Before(time.Now()) {
		validationErr.AddError("scheduled_pickup_time", "Scheduled pickup time must be in the future")
	}

	if validationErr.HasErrors() {
		return validationErr
	}

	return nil
}

// ValidateDateRange validates that end date is after start date
func ValidateDateRange(start, end time.Time) error {
	if end.Before(start) {
		return &ValidationError{
			Errors: map[string]string{
				"date_range": "End date must be after start date",
			},
		}
	}
	return nil
}
