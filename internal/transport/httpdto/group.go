package httpdto

type CreateGroupRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	MemberIDs   []string `json:"memberIds"`
}

type AddMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
}
