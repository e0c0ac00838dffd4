package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	log "github.com/sirupsen/logrus"
)

const adSequenceKey = "ad_sequence"

type sequence struct {
	Last int64 `json:"last"`
}

// AdRepository stores scheduled ads. IDs come from a persisted sequence so
// they stay generation-ordered across restarts.
type AdRepository struct {
	store Store
	ads   *Collection[entities.ScheduledAd]

	seqMu   sync.Mutex
	lastSeq int64
}

func NewAdRepository(ctx context.Context, store Store) (*AdRepository, error) {
	ads, err := LoadCollection[entities.ScheduledAd](ctx, store, CollectionAds)
	if err != nil {
		return nil, err
	}

	r := &AdRepository{store: store, ads: ads}
	for _, ad := range ads.All() {
		if ad.ID > r.lastSeq {
			r.lastSeq = ad.ID
		}
	}
	return r, nil
}

func adKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// nextID advances the persisted sequence. If the store is unavailable the
// in-memory counter still advances.
func (r *AdRepository) nextID(ctx context.Context) int64 {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()

	next := r.lastSeq + 1
	_, err := r.store.Update(ctx, CollectionMeta, adSequenceKey, func(current []byte) ([]byte, error) {
		var seq sequence
		if current != nil {
			if err := json.Unmarshal(current, &seq); err != nil {
				return nil, err
			}
		}
		if seq.Last >= next {
			next = seq.Last + 1
		}
		return json.Marshal(sequence{Last: next})
	})
	if err != nil {
		log.WithError(err).Error("Failed to persist ad sequence")
	}
	r.lastSeq = next
	return next
}

// Create assigns an ID to ad and stores it.
func (r *AdRepository) Create(ctx context.Context, ad entities.ScheduledAd) (entities.ScheduledAd, error) {
	ad.ID = r.nextID(ctx)
	return r.ads.Mutate(ctx, adKey(ad.ID), func(v *entities.ScheduledAd, _ bool) error {
		*v = ad
		return nil
	})
}

func (r *AdRepository) Get(id int64) (entities.ScheduledAd, bool) {
	return r.ads.Get(adKey(id))
}

// List returns all ads ordered by ID.
func (r *AdRepository) List() []entities.ScheduledAd {
	ads := r.ads.All()
	sort.Slice(ads, func(i, j int) bool { return ads[i].ID < ads[j].ID })
	return ads
}

// Mutate runs fn on an existing ad. It returns ErrNotFound when the ad is
// gone, so a concurrent delete is never resurrected.
func (r *AdRepository) Mutate(ctx context.Context, id int64, fn func(ad *entities.ScheduledAd) error) (entities.ScheduledAd, error) {
	return r.ads.Mutate(ctx, adKey(id), func(v *entities.ScheduledAd, exists bool) error {
		if !exists {
			return ErrNotFound
		}
		return fn(v)
	})
}

func (r *AdRepository) Delete(ctx context.Context, id int64) error {
	return r.ads.Remove(ctx, adKey(id))
}

func (r *AdRepository) Flush(ctx context.Context) error {
	return r.ads.Flush(ctx)
}
