package catalog

// imageFieldCandidates are the raw roster fields probed for a usable image
// URL, in order. The order is a contract: changing it changes which image a
// freshly published entry shows.
var imageFieldCandidates = []string{
	"preview_image",
	"previewImage",
	"preview_url",
	"previewUrl",
	"thumbnail",
	"thumbnail_url",
	"thumbnailUrl",
	"image_url",
	"imageUrl",
	"avatar_url",
	"avatarUrl",
	"face_image",
	"faceImage",
	"face_url",
	"faceUrl",
	"face_preview_url",
	"facePreviewUrl",
}

// ExtractImage returns the first non-empty string among the candidate image
// fields of a raw roster entry, or "" when none is set.
func ExtractImage(raw map[string]interface{}) string {
	for _, key := range imageFieldCandidates {
		if val, ok := raw[key].(string); ok && val != "" {
			return val
		}
	}
	return ""
}
