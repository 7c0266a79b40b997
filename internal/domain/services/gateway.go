package services

import (
	"context"
	"time"

	"modelgate/internal/domain/models"
)

// Actions served by the gateway.
const (
	ActionFind            = "find"
	ActionFindOne         = "findOne"
	ActionCount           = "count"
	ActionSave            = "save"
	ActionUpdate          = "update"
	ActionRemove          = "remove"
	ActionVersions        = "versions"
	ActionPagination      = "pagination"
	ActionSchema          = "schema"
	ActionDropdownOptions = "dropdownoptions"
	ActionUnpublished     = "unpublished"
)

// Request is the transport-agnostic descriptor of one gateway call.
type Request struct {
	Model  string        `json:"-"`
	Action string        `json:"-"`
	Actor  *models.Actor `json:"-"`

	Query          models.Filter   `json:"query"`
	Select         models.Select   `json:"select"`
	Sort           models.Sort     `json:"sort"`
	Populate       models.PathList `json:"populate"`
	Limit          *int            `json:"limit"`
	Page           int             `json:"page"`
	PageSize       int             `json:"pageSize"`
	PagesInView    int             `json:"pagesInView"`
	Field          string          `json:"field"`
	SortDir        int             `json:"sortDir"`
	PurgeEmpty     *bool           `json:"purgeEmpty"`
	Data           map[string]any  `json:"data"`
	SaveReferences any             `json:"saveReferences"`
	Projection     string          `json:"projection"`
	IDs            any             `json:"_ids"`
}

// Result is the body of a successful call. Empty results are written as a
// bare 200 with no body.
type Result struct {
	Body  any
	Empty bool
}

// ChangesRequest selects documents updated within [From, To].
type ChangesRequest struct {
	Model      string
	Projection string
	Actor      *models.Actor
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

// Gateway is the action dispatcher.
type Gateway interface {
	Dispatch(ctx context.Context, req *Request) (*Result, error)

	CountChanges(ctx context.Context, req *ChangesRequest) (int64, error)
	ListChanges(ctx context.Context, req *ChangesRequest) ([]map[string]any, error)
	StreamChanges(ctx context.Context, req *ChangesRequest, emit func(map[string]any) error) error
}
