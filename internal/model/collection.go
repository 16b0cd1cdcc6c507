package model

const (
	CollectionStateNormal  = 1
	CollectionStateDeleted = 2
)

// Collection is a user-defined folder. ParentID of 0 marks a root; name is
// unique among siblings of the same owner, not globally.
type Collection struct {
	ID       int64  `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id"`
	OrderIdx int    `json:"order_idx"`
	Color    string `json:"color,omitempty"`
	Icon     string `json:"icon,omitempty"`
	State    int    `json:"-"`
	Ctime    int64  `json:"ctime"`
	Mtime    int64  `json:"mtime"`
}

type CollectionItem struct {
	CollectionID int64  `json:"collection_id"`
	DocumentID   int64  `json:"document_id"`
	UserID       string `json:"user_id"`
	Ctime        int64  `json:"ctime"`
}
