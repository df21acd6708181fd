package core

// Comment is a single record returned by the remote comment source.
// Records are immutable once received; the list as a whole is replaced
// by a fetch or cleared explicitly, never edited in place.
type Comment struct {
	PostID int    `json:"postId" validate:"required"`
	ID     int    `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Body   string `json:"body" validate:"required"`
}

// CloneComments copies a comment list. Comments are value records, so a
// slice copy is a deep copy.
func CloneComments(cs []Comment) []Comment {
	if len(cs) == 0 {
		return nil
	}
	res := make([]Comment, len(cs))
	copy(res, cs)
	return res
}
