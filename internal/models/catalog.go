package models

// CatalogSnapshot is the read-only slice of the catalog needed for one generation
// request. Slices are in catalog order.
type CatalogSnapshot struct {
	Terms      []Term         `json:"terms"`
	Classes    []ClassSection `json:"classes"`
	Courses    []Course       `json:"courses"`
	Components []Component    `json:"components"`
	Sessions   []Session      `json:"sessions"`
}

// TermCatalog is the browse view of a single term.
type TermCatalog struct {
	Term    Term                `json:"term"`
	Classes []ClassCatalogEntry `json:"classes"`
}

// ClassCatalogEntry lists the courses of a class.
type ClassCatalogEntry struct {
	ClassSection
	Courses []CourseCatalogEntry `json:"courses"`
}

// CourseCatalogEntry lists the components of a course.
type CourseCatalogEntry struct {
	Course
	Components []ComponentCatalogEntry `json:"components"`
}

// ComponentCatalogEntry lists the sessions of a component.
type ComponentCatalogEntry struct {
	Component
	Sessions []Session `json:"sessions"`
}
