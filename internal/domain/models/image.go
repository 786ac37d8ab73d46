package models

// Image references an uploaded file in the storage backend.
type Image struct {
	Key         string `bson:"key" json:"key"`
	ContentType string `bson:"contentType" json:"contentType"`
}

// IsZero reports whether no image has been uploaded.
func (i *Image) IsZero() bool {
	return i == nil || i.Key == ""
}

// EncodedImage is the wire form returned to clients that render images inline.
type EncodedImage struct {
	ContentType string `json:"contentType"`
	Data        string `json:"data"` // base64
}
