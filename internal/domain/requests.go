package domain

// UpdateFeedItemRequest toggles flags on a feed item. Nil fields are left unchanged.
type UpdateFeedItemRequest struct {
	Read     *bool `json:"read"`
	Starred  *bool `json:"starred"`
	Archived *bool `json:"archived"`
}

// GetFeedRequest represents a request to list a recipient feed
type GetFeedRequest struct {
	UnreadOnly      bool `form:"unread_only"`
	IncludeArchived bool `form:"include_archived"`
	Page            int  `form:"page"`
	PageSize        int  `form:"page_size"`
}

// SetChannelEnabledRequest enables or disables a channel
type SetChannelEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// DocumentExpiryRequest submits a document expiry check
type DocumentExpiryRequest struct {
	DocumentID    string `json:"document_id" binding:"required"`
	DocumentType  string `json:"document_type" binding:"required"`
	OwnerID       string `json:"owner_id" binding:"required"`
	DaysRemaining int    `json:"days_remaining"`
}

// PayrollProcessedRequest submits a payroll completion
type PayrollProcessedRequest struct {
	EmployeeID string  `json:"employee_id" binding:"required"`
	Period     string  `json:"period" binding:"required"`
	NetAmount  float64 `json:"net_amount"`
}
