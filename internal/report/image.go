package report

import "strings"

const (
	CategoryDamage    = "Schadenfotos"
	CategoryPlans     = "Pläne"
	CategoryDocuments = "Dokumente"
)

// Image is a photo or document attached to a case. It is grouped by exactly
// one of RoomID or Category.
type Image struct {
	ID              Text   `json:"id"`
	Name            string `json:"name"`
	Date            string `json:"date"`
	StorageKey      string `json:"storageKey,omitempty"`
	URL             string `json:"url,omitempty"`
	ContentType     string `json:"contentType,omitempty"`
	RoomID          Text   `json:"roomId,omitempty"`
	Category        string `json:"category,omitempty"`
	Description     string `json:"description"`
	IncludeInReport *bool  `json:"includeInReport,omitempty"`
	UploadFailed    bool   `json:"error,omitempty"`
}

// Included defaults to true when the flag was never set.
func (img Image) Included() bool {
	return img.IncludeInReport == nil || *img.IncludeInReport
}

func (img *Image) SetIncluded(v bool) {
	img.IncludeInReport = &v
}

// AssignRoom groups the image under a room and drops any category.
func (img *Image) AssignRoom(roomID string) {
	img.RoomID = Text(roomID)
	img.Category = ""
}

// AssignCategory groups the image under a category and drops any room.
func (img *Image) AssignCategory(category string) {
	img.Category = strings.TrimSpace(category)
	img.RoomID = ""
}

// Group returns the grouping key and whether it is a room.
func (img Image) Group() (key string, isRoom bool) {
	if img.RoomID != "" {
		return string(img.RoomID), true
	}
	return img.Category, false
}

func (img Image) IsPDF() bool {
	return img.ContentType == "application/pdf" || strings.HasSuffix(strings.ToLower(img.Name), ".pdf")
}
