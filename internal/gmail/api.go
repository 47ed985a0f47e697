package gmail

import (
	"context"

	gmail "google.golang.org/api/gmail/v1"
)

const me = "me"

// API is the narrow Gmail surface used by Service.
type API interface {
	ListMessages(ctx context.Context, query string, maxResults int64) (*gmail.ListMessagesResponse, error)
	GetMessage(ctx context.Context, id string) (*gmail.Message, error)
	SendMessage(ctx context.Context, msg *gmail.Message) (*gmail.Message, error)
	BatchModify(ctx context.Context, req *gmail.BatchModifyMessagesRequest) error
	GetProfile(ctx context.Context) (*gmail.Profile, error)
}

// googleAPI adapts *gmail.Service to API.
type googleAPI struct {
	users *gmail.UsersService
}

// NewAPI wraps a Gmail service.
func NewAPI(svc *gmail.Service) API {
	return &googleAPI{users: svc.Users}
}

func (g *googleAPI) ListMessages(ctx context.Context, query string, maxResults int64) (*gmail.ListMessagesResponse, error) {
	call := g.users.Messages.List(me).Q(query)
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}
	return call.Context(ctx).Do()
}

func (g *googleAPI) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	return g.users.Messages.Get(me, id).Format("full").Context(ctx).Do()
}

func (g *googleAPI) SendMessage(ctx context.Context, msg *gmail.Message) (*gmail.Message, error) {
	return g.users.Messages.Send(me, msg).Context(ctx).Do()
}

func (g *googleAPI) BatchModify(ctx context.Context, req *gmail.BatchModifyMessagesRequest) error {
	return g.users.Messages.BatchModify(me, req).Context(ctx).Do()
}

func (g *googleAPI) GetProfile(ctx context.Context) (*gmail.Profile, error) {
	return g.users.GetProfile(me).Context(ctx).Do()
}
