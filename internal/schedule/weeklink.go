package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/mail-relay/internal/model"
	"github.com/jmehdipour/mail-relay/internal/timemath"
)

const DefaultWeekTitleFormat = "Week %d"

// ContainerFinder resolves a weekly container title to its record id. It returns
// an empty id and a nil error when no container has that title.
type ContainerFinder interface {
	FindContainer(ctx context.Context, title string) (string, error)
}

type WeekLinker struct {
	finder      ContainerFinder
	titleFormat string
}

func NewWeekLinker(finder ContainerFinder, titleFormat string) *WeekLinker {
	if strings.TrimSpace(titleFormat) == "" || !strings.Contains(titleFormat, "%d") {
		titleFormat = DefaultWeekTitleFormat
	}
	return &WeekLinker{finder: finder, titleFormat: titleFormat}
}

// Target computes the publication date, ISO week and container title for now,
// without touching the record store.
func (l *WeekLinker) Target(now time.Time) model.WeekRef {
	pub := timemath.NextThursday(timemath.ToLocal(now))
	week := timemath.ISOWeek(pub)
	return model.WeekRef{
		WeekNumber:      week,
		PublicationDate: pub,
		Title:           fmt.Sprintf(l.titleFormat, week),
	}
}

// ResolveContainer looks up the container for the week after now. A missing
// container leaves LinkedContainerID empty and is not an error; a failing
// lookup returns the computed target together with the error.
func (l *WeekLinker) ResolveContainer(ctx context.Context, now time.Time) (model.WeekRef, error) {
	ref := l.Target(now)
	if l.finder == nil {
		return ref, nil
	}

	id, err := l.finder.FindContainer(ctx, ref.Title)
	if err != nil {
		return ref, fmt.Errorf("find week container %q: %w", ref.Title, err)
	}
	ref.LinkedContainerID = id
	return ref, nil
}
