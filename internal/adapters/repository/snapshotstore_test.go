package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/airscore/internal/adapters/repository"
	"github.com/okian/airscore/internal/domain/model"
	"github.com/okian/airscore/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func result(ids ...int64) scoring.Result {
	res := scoring.Result{Mode: scoring.ModeBatch, Nodes: []model.NodeScore{{NodeID: "x"}}}
	for i, id := range ids {
		res.Rankings = append(res.Rankings, model.ProviderRanking{
			ProviderID: id,
			P75:        1 - float64(i)/10,
			Nodes:      []model.NodeScore{},
		})
	}
	return res
}

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := repository.NewSnapshotStore()

		Convey("Then reads are empty", func() {
			So(s.Count(ctx), ShouldEqual, 0)
			top, err := s.TopN(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldBeEmpty)

			_, err = s.Latest(ctx)
			So(errors.Is(err, repository.ErrNoSnapshot), ShouldBeTrue)

			_, _, err = s.Provider(ctx, 1)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a result is published", func() {
			at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			s.Publish(ctx, "run-1", at, result(7, 3, 9))

			Convey("Then TopN returns providers in rank order", func() {
				top, err := s.TopN(ctx, 2)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 2)
				So(top[0].ProviderID, ShouldEqual, 7)
				So(top[1].ProviderID, ShouldEqual, 3)
			})

			Convey("And a limit beyond the ranking returns everything", func() {
				top, err := s.TopN(ctx, 100)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 3)
			})

			Convey("And an invalid limit is rejected", func() {
				_, err := s.TopN(ctx, 0)
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			})

			Convey("And Provider returns the entry with its rank", func() {
				r, rank, err := s.Provider(ctx, 9)
				So(err, ShouldBeNil)
				So(r.ProviderID, ShouldEqual, 9)
				So(rank, ShouldEqual, 3)

				_, _, err = s.Provider(ctx, 42)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("And Latest carries the run metadata", func() {
				snap, err := s.Latest(ctx)
				So(err, ShouldBeNil)
				So(snap.RunID, ShouldEqual, "run-1")
				So(snap.ComputedAt, ShouldEqual, at)
				So(snap.Mode, ShouldEqual, scoring.ModeBatch)
				So(snap.NodeCount, ShouldEqual, 1)
			})

			Convey("And a later publish replaces the ranking", func() {
				s.Publish(ctx, "run-2", at.Add(time.Minute), result(3))
				So(s.Count(ctx), ShouldEqual, 1)
				_, _, err := s.Provider(ctx, 7)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestSnapshotStore_ConcurrentReads(t *testing.T) {
	Convey("Given readers racing a publisher", t, func() {
		ctx := context.Background()
		s := repository.NewSnapshotStore()
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				s.Publish(ctx, "run", time.Now(), result(int64(i), int64(i+1)))
			}
		}()
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 200 {
					top, err := s.TopN(ctx, 5)
					if err != nil || len(top) > 2 {
						panic("inconsistent snapshot")
					}
				}
			}()
		}
		wg.Wait()

		So(s.Count(ctx), ShouldEqual, 2)
	})
}
