package api

// CreateTodoRequest is the JSON request body for creating an item. The
// multipart variant carries the same description field plus up to six
// "images" file parts instead of imageUrls.
type CreateTodoRequest struct {
	Description string   `json:"description"`
	ImageURLs   []string `json:"imageUrls,omitempty"`
}

// UpdateTodoRequest is the request body for updating an item. Only the
// two mutable fields are accepted; anything else in the body is ignored.
type UpdateTodoRequest struct {
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// DeleteTodoResponse confirms a deletion and names the removed images.
type DeleteTodoResponse struct {
	ID            string   `json:"id"`
	DeletedImages []string `json:"deletedImages"`
}
