package dto

// CreateRequest is the JSON body of a notification creation request.
// The delivery channel comes from the route, not the body.
type CreateRequest struct {
	RecipientID   string `json:"recipient_id" validate:"required"`
	Content       string `json:"content" validate:"required,max=4096"`
	Timezone      string `json:"timezone"`
	ScheduledTime string `json:"scheduled_time"`
	Priority      int    `json:"priority" validate:"omitempty,gte=1,lte=10"`
}
