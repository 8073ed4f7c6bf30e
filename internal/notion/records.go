package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmehdipour/mail-relay/internal/model"
)

// Databases holds the database ids records are written to.
type Databases struct {
	Events     string
	Newsletter string
	Inbox      string
	Weeks      string
}

// Records writes pipeline output as pages in the configured databases.
type Records struct {
	client *Client
	dbs    Databases
	// WeekProperty is the relation property on newsletter pages.
	WeekProperty string
}

func NewRecords(client *Client, dbs Databases) *Records {
	return &Records{client: client, dbs: dbs, WeekProperty: "Week"}
}

func (r *Records) CreateEvent(ctx context.Context, f model.EventFields, when model.DateRange, src model.Envelope) (model.PageRef, error) {
	props := Properties{
		"Name": Title(f.Name),
		"Date": Date(when),
	}
	props.SetIf("Location", f.Location, RichText)
	props.SetIf("Organizer", f.Organizer, RichText)
	props.SetIf("URL", f.URL, URL)
	props.SetIf("Source", src.From, Email)
	return r.create(ctx, r.dbs.Events, props, f.Description)
}

func (r *Records) CreateNewsletterItem(ctx context.Context, f model.NewsletterFields, src model.Envelope) (model.PageRef, error) {
	props := Properties{"Title": Title(f.Title)}
	props.SetIf("Summary", f.Summary, RichText)
	props.SetIf("Category", f.Category, Select)
	props.SetIf("Link", f.Link, URL)
	props.SetIf("Source", src.From, Email)
	return r.create(ctx, r.dbs.Newsletter, props, f.Summary)
}

func (r *Records) CreateInboxItem(ctx context.Context, f model.InboxFields, src model.Envelope) (model.PageRef, error) {
	props := Properties{"Title": Title(f.Title)}
	props.SetIf("Priority", f.Priority, Select)
	props.SetIf("From", src.From, Email)
	props.SetIf("Subject", src.Subject, RichText)

	body := f.Summary
	if len(f.ActionItems) > 0 {
		body += "\n\nAction items:\n- " + strings.Join(f.ActionItems, "\n- ")
	}
	return r.create(ctx, r.dbs.Inbox, props, body)
}

// LinkWeek relates a newsletter page to its weekly container.
func (r *Records) LinkWeek(ctx context.Context, pageID, containerID string) error {
	return r.client.UpdateProperties(ctx, pageID, Properties{r.WeekProperty: Relation(containerID)})
}

func (r *Records) AddComment(ctx context.Context, pageID, text string) error {
	return r.client.AddComment(ctx, pageID, text)
}

func (r *Records) create(ctx context.Context, databaseID string, props Properties, body string) (model.PageRef, error) {
	page, err := r.client.CreatePage(ctx, PageRequest{DatabaseID: databaseID, Properties: props, Body: body})
	if err != nil {
		return model.PageRef{}, fmt.Errorf("create page: %w", err)
	}
	return model.PageRef{ID: page.ID, URL: page.URL}, nil
}

// Weeks returns a finder over the weekly container database.
func (r *Records) Weeks() WeekContainers {
	return WeekContainers{Client: r.client, DatabaseID: r.dbs.Weeks, TitleProperty: "Name"}
}
