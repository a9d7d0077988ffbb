package changefeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// changeStreamHistoryLost is the server error for a resume token that has
// fallen off the oplog.
const changeStreamHistoryLost = 286

// changeStream is the part of *mongo.ChangeStream that Streams uses.
type changeStream interface {
	Next(ctx context.Context) bool
	ResumeToken() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

// Streams delivers notifications from MongoDB change streams, one stream
// per subscription. Writes are observed by the server, so Publish is a
// no-op. A stream that fails is reopened with backoff, resuming after the
// last event seen.
type Streams struct {
	db  *mongo.Database
	log *zap.Logger

	open       func(ctx context.Context, collection string, resumeAfter bson.Raw) (changeStream, error)
	newBackOff func() backoff.BackOff
}

func NewStreams(db *mongo.Database, logger *zap.Logger) *Streams {
	s := &Streams{db: db, log: logger}
	s.open = s.watch
	s.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 30 * time.Second
		return b
	}
	return s
}

func (s *Streams) watch(ctx context.Context, collection string, resumeAfter bson.Raw) (changeStream, error) {
	// Only the event's existence matters; project the payload away.
	pipeline := mongo.Pipeline{bson.D{{Key: "$project", Value: bson.M{"operationType": 1}}}}
	opts := options.ChangeStream()
	if resumeAfter != nil {
		opts.SetStartAfter(resumeAfter)
	}
	return s.db.Collection(collection).Watch(ctx, pipeline, opts)
}

func (s *Streams) Subscribe(ctx context.Context, collection string, onChange func()) (func(), error) {
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	cs, err := s.open(watchCtx, collection, nil)
	if err != nil {
		cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.follow(watchCtx, collection, cs, onChange)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// follow drains cs until ctx is canceled, reopening it whenever it ends.
// onChange fires once after every reopen since writes made while the
// stream was down may not be replayed.
func (s *Streams) follow(ctx context.Context, collection string, cs changeStream, onChange func()) {
	log := s.log.With(zap.String("collection", collection))
	bo := s.newBackOff()
	var token bson.Raw

	for {
		for cs.Next(ctx) {
			if t := cs.ResumeToken(); t != nil {
				token = append(bson.Raw(nil), t...)
			}
			onChange()
		}
		err := cs.Err()
		_ = cs.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		log.Warn("change stream ended; reconnecting", zap.Error(err))

		for {
			wait := time.NewTimer(bo.NextBackOff())
			select {
			case <-ctx.Done():
				wait.Stop()
				return
			case <-wait.C:
			}

			next, err := s.open(ctx, collection, token)
			if err == nil {
				cs = next
				break
			}
			if ctx.Err() != nil {
				return
			}
			log.Warn("change stream reopen failed", zap.Error(err), zap.Bool("resuming", token != nil))
			var se mongo.ServerError
			if errors.As(err, &se) && se.HasErrorCode(changeStreamHistoryLost) {
				token = nil
			}
		}

		bo.Reset()
		log.Info("change stream reopened")
		onChange()
	}
}

func (s *Streams) Publish(context.Context, string) error { return nil }
