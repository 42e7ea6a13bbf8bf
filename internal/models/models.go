package models

// BookDescriptor represents a book or magazine in the catalog
type BookDescriptor struct {
	Slug      string `json:"slug" yaml:"slug"`
	Title     string `json:"title" yaml:"title"`
	PageCount int    `json:"pageCount" yaml:"pageCount"`
	// PDF overrides the default "book.pdf" filename inside the book directory
	PDF string `json:"pdf,omitempty" yaml:"pdf,omitempty"`
}

// PageRef represents one page image of a book
type PageRef struct {
	Index          int    `json:"index"`
	ImageURL       string `json:"image_url"`
	IsPriorityLoad bool   `json:"is_priority_load"`
}

// ViewportSize is the visible area of the viewer in CSS pixels
type ViewportSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ViewerState is the interaction state of a mounted viewer
type ViewerState struct {
	CurrentPageIndex int          `json:"current_page_index"`
	ControlsVisible  bool         `json:"controls_visible"`
	IsFullscreen     bool         `json:"is_fullscreen"`
	IsMobileDevice   bool         `json:"is_mobile_device"`
	IsIOSDevice      bool         `json:"is_ios_device"`
	ViewportSize     ViewportSize `json:"viewport_size"`
}

// DownloadDialogState is the confirm-before-download affordance
type DownloadDialogState struct {
	Visible        bool   `json:"visible"`
	FileSizeLabel  string `json:"file_size_label"`
	IsFetchingSize bool   `json:"is_fetching_size"`
}
