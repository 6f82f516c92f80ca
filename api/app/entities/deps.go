package entities

import (
	"net/http"

	"github.com/eisenwinter/mdqd/mdq"
)

// QueryHandler answers metadata queries
type QueryHandler interface {
	Query(r *http.Request, entityID string) (*mdq.Response, error)
}

// QueryRecorder is notified about the status of every answered query
type QueryRecorder interface {
	QueryCompleted(status int)
}
