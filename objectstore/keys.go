package objectstore

// Object keys for a drawing live under a shared "drawings/{id}/" prefix.
// The two derivations are pure: no validation is performed on the identifier,
// which is owned by the metadata layer.

const keyPrefix = "drawings/"

// DataKey returns the object key holding a drawing's JSON payload.
func DataKey(drawingID string) string {
	return keyPrefix + drawingID + "/data.json"
}

// ThumbnailKey returns the object key holding a drawing's raster thumbnail.
func ThumbnailKey(drawingID string) string {
	return keyPrefix + drawingID + "/thumbnail.png"
}

// DrawingPrefix returns the common key prefix shared by both of a drawing's
// objects, used for prefix listings.
func DrawingPrefix(drawingID string) string {
	return keyPrefix + drawingID + "/"
}
