package types

// PolicyResponse is posted back by the upload client as multipart form fields,
// so the JSON names follow the storage provider's form field names.
type PolicyResponse struct {
	Policy              string `json:"policy"`
	Signature           string `json:"signature"`
	AccessKeyID         string `json:"AWSAccessKeyId"`
	CacheControl        string `json:"Cache-Control"`
	ContentType         string `json:"Content-Type"`
	ACL                 string `json:"acl"`
	Key                 string `json:"key"`
	SuccessActionStatus string `json:"success_action_status"`
	Filename            string `json:"Filename,omitempty"`
}

// PolicyErrorResponse is returned with HTTP 200; the upload client checks errorMessage.
type PolicyErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
}

// WidgetConfig is what the browser upload widget needs to talk to the policy endpoint and storage.
type WidgetConfig struct {
	PolicyURL         string   `json:"signature_url"`
	StorageURL        string   `json:"url"`
	AllowedExtensions []string `json:"allowed_types"`
	MaxFileSize       int64    `json:"max_file_size"`
	MultiSelection    bool     `json:"multi_selection"`
	FileDataName      string   `json:"file_data_name"`
}

// AttachmentView is an attachment record together with its derived URLs.
type AttachmentView struct {
	Attachment   any    `json:"attachment"`
	PublicURL    string `json:"public_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}
