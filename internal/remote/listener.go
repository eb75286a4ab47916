package remote

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/julianstephens/petminder/internal/constants"
	"github.com/julianstephens/petminder/internal/logger"
	"github.com/julianstephens/petminder/internal/models"
)

// Listener is the PostgreSQL ChangeFeed. Notifications on the reminders
// channel carry the owning dog's id. After a reconnect, when notifications
// may have been missed, it emits the zero ID to ask for a full sync.
type Listener struct {
	l       *pq.Listener
	changes chan models.ID
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// Listen subscribes to channel on the database at connStr.
func Listen(connStr, channel string) (*Listener, error) {
	log := logger.Component("listener")
	pl := pq.NewListener(connStr, constants.ListenerMinReconnect, constants.ListenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Warn("Change feed connection event", "event", ev, "error", err)
			}
		})
	if err := pl.Listen(channel); err != nil {
		pl.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	l := &Listener{
		l:       pl,
		changes: make(chan models.ID, 16),
		done:    make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run(constants.ListenerPingInterval)
	return l, nil
}

func (l *Listener) Changes() <-chan models.ID { return l.changes }

func (l *Listener) run(pingInterval time.Duration) {
	defer l.wg.Done()
	defer close(l.changes)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case n := <-l.l.Notify:
			id, ok := parseNotification(n)
			if !ok {
				continue
			}
			select {
			case l.changes <- id:
			case <-l.done:
				return
			}
		case <-ticker.C:
			if err := l.l.Ping(); err != nil {
				logger.Debug("Change feed ping failed", "error", err)
			}
		}
	}
}

// parseNotification maps a notification to a dog id. A nil notification
// follows a reconnect and maps to the zero ID.
func parseNotification(n *pq.Notification) (models.ID, bool) {
	if n == nil {
		return models.ID{}, true
	}
	v, err := strconv.ParseInt(strings.TrimSpace(n.Extra), 10, 64)
	if err != nil || v <= 0 {
		logger.Warn("Ignoring malformed change notification", "channel", n.Channel, "payload", n.Extra)
		return models.ID{}, false
	}
	return models.Assigned(v), true
}

func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		l.wg.Wait()
		err = l.l.Close()
	})
	return err
}
