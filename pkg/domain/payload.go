package domain

import "github.com/shopspring/decimal"

// RecordPayload is the JSON shape of an inventory record as returned by the
// REST API. Container, sample, subsample and template payloads share it;
// fields that do not apply to a variant stay empty.
type RecordPayload struct {
	ID              int64          `json:"id"`
	GlobalID        GlobalID       `json:"globalId" validate:"required,globalid"`
	Type            RecordType     `json:"type" validate:"required,oneof=CONTAINER SAMPLE SUBSAMPLE SAMPLE_TEMPLATE"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Created         string         `json:"created,omitempty"`
	LastModified    string         `json:"lastModified,omitempty"`
	Owner           *PersonPayload `json:"owner,omitempty"`
	ReadAccessLevel AccessLevel    `json:"readAccessLevel,omitempty" validate:"omitempty,oneof=public limited full"`
	Tags            []string       `json:"tags,omitempty"`

	// Location.
	ParentContainers       []RecordPayload  `json:"parentContainers,omitempty" validate:"dive"`
	ParentLocation         *LocationPayload `json:"parentLocation,omitempty"`
	LastMoveDate           *string          `json:"lastMoveDate,omitempty"`
	LastNonWorkbenchParent *RecordPayload   `json:"lastNonWorkbenchParent,omitempty"`

	// Quantity.
	Quantity *QuantityPayload `json:"quantity,omitempty"`

	// Container.
	ContainerType ContainerType      `json:"cType,omitempty" validate:"omitempty,oneof=LIST GRID IMAGE WORKBENCH"`
	GridLayout    *GridLayoutPayload `json:"gridLayout,omitempty"`
	Locations     []LocationPayload  `json:"locations,omitempty" validate:"dive"`
	StoredContent []RecordPayload    `json:"storedContent,omitempty" validate:"dive"`

	// Sample and subsample.
	Subsamples    []RecordPayload     `json:"subSamples,omitempty" validate:"dive"`
	SampleGlobal  GlobalID            `json:"sampleGlobalId,omitempty" validate:"omitempty,globalid"`
	TemplateID    *int64              `json:"templateId,omitempty"`
	DefaultUnitID int                 `json:"defaultUnitId,omitempty"`
	GeoLocation   *GeoLocationPayload `json:"geoLocation,omitempty"`
}

// PersonPayload is the JSON shape of a user.
type PersonPayload struct {
	ID          int64  `json:"id"`
	Username    string `json:"username" validate:"required"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	WorkbenchID int64  `json:"workbenchId,omitempty"`
}

// LocationPayload is a grid or list cell, optionally holding content.
type LocationPayload struct {
	ID      int64          `json:"id,omitempty"`
	CoordX  int            `json:"coordX" validate:"gte=0"`
	CoordY  int            `json:"coordY" validate:"gte=0"`
	Content *RecordPayload `json:"content,omitempty"`
}

// QuantityPayload is the JSON shape of a quantity.
type QuantityPayload struct {
	NumericValue decimal.Decimal `json:"numericValue"`
	UnitID       int             `json:"unitId" validate:"gte=0"`
}

// GridLayoutPayload is the JSON shape of a grid layout.
type GridLayoutPayload struct {
	ColumnsNumber    int       `json:"columnsNumber" validate:"gte=1"`
	RowsNumber       int       `json:"rowsNumber" validate:"gte=1"`
	ColumnsLabelType AxisLabel `json:"columnsLabelType,omitempty"`
	RowsLabelType    AxisLabel `json:"rowsLabelType,omitempty"`
}

// GeoLocationPayload is the JSON shape of collection-site metadata.
type GeoLocationPayload struct {
	PointLatitude  *decimal.Decimal `json:"pointLatitude,omitempty"`
	PointLongitude *decimal.Decimal `json:"pointLongitude,omitempty"`
	PlaceName      string           `json:"geoLocationPlace,omitempty"`
	Box            *GeoBox          `json:"geoLocationBox,omitempty"`
}

// ContainerFactory materializes container payloads into containers.
type ContainerFactory interface {
	NewContainer(RecordPayload) (*Container, error)
}
