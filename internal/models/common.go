package models

// ErrorResponse is a standardized error response for API
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// CommunityStats backs the public stats endpoint.
type CommunityStats struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalPosts    int64 `json:"totalPosts"`
	TotalComments int64 `json:"totalComments"`
	OnlineUsers   int   `json:"onlineUsers"`
}

// StringPtr is a small helper for optional columns.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
