package graph

// Item is a drive item as returned by the Microsoft Graph API.
// Timestamps are passed through as the ISO 8601 strings Graph reports.
type Item struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Size                 int64          `json:"size"`
	WebURL               string         `json:"webUrl,omitempty"`
	CreatedDateTime      string         `json:"createdDateTime,omitempty"`
	LastModifiedDateTime string         `json:"lastModifiedDateTime,omitempty"`
	Folder               *FolderFacet   `json:"folder,omitempty"`
	File                 *FileFacet     `json:"file,omitempty"`
	Thumbnails           []ThumbnailSet `json:"thumbnails,omitempty"`
	DownloadURL          string         `json:"@microsoft.graph.downloadUrl,omitempty"`
}

// IsFolder reports whether the item carries the folder facet.
func (it *Item) IsFolder() bool {
	return it.Folder != nil
}

// MimeType returns the upstream-reported MIME type, or "" if absent.
func (it *Item) MimeType() string {
	if it.File == nil {
		return ""
	}
	return it.File.MimeType
}

// FolderFacet is present on folder items.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// FileFacet is present on file items.
type FileFacet struct {
	MimeType string `json:"mimeType"`
}

// ThumbnailSet holds the size variants of one thumbnail.
type ThumbnailSet struct {
	Small  *Thumbnail `json:"small,omitempty"`
	Medium *Thumbnail `json:"medium,omitempty"`
	Large  *Thumbnail `json:"large,omitempty"`
}

// Thumbnail is a single thumbnail variant.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// User is the authenticated user's profile from /me.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Email returns the best available email address for the user.
func (u *User) Email() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

// listResponse is the envelope Graph uses for collections.
type listResponse struct {
	Value []Item `json:"value"`
}
