package match

import (
	"slices"
	"testing"

	"github.com/poiesic/lostfound/core"
	"github.com/stretchr/testify/assert"
)

func TestCandidates(t *testing.T) {
	subject := listing("S", "owner", core.KindLost, "bag", "Black bag", "", "")

	claimed := listing("claimed", "u2", core.KindFound, "bag", "Black bag", "", "")
	claimed.Status = core.StatusClaimed
	withdrawn := listing("withdrawn", "u3", core.KindFound, "bag", "Black bag", "", "")
	withdrawn.Status = core.StatusWithdrawn

	pool := []*core.Listing{
		listing("same-kind", "u2", core.KindLost, "bag", "Black bag", "", ""),
		listing("own", "owner", core.KindFound, "bag", "Black bag", "", ""),
		claimed,
		nil,
		listing("ok-1", "u2", core.KindFound, "bag", "Black bag", "", ""),
		withdrawn,
		listing("ok-2", "u3", core.KindFound, "keys", "Keys", "", ""),
	}
	snapshot := slices.Clone(pool)

	ids := func() []string {
		var out []string
		for c := range Candidates(subject, pool) {
			out = append(out, c.ID)
		}
		return out
	}

	t.Run("filters kind owner and status", func(t *testing.T) {
		assert.Equal(t, []string{"ok-1", "ok-2"}, ids())
	})

	t.Run("restartable", func(t *testing.T) {
		assert.Equal(t, ids(), ids())
	})

	t.Run("does not mutate pool", func(t *testing.T) {
		_ = ids()
		assert.Equal(t, snapshot, pool)
	})

	t.Run("early stop", func(t *testing.T) {
		count := 0
		for range Candidates(subject, pool) {
			count++
			break
		}
		assert.Equal(t, 1, count)
	})

	t.Run("never yields own listings", func(t *testing.T) {
		for c := range Candidates(subject, pool) {
			assert.NotEqual(t, subject.OwnerID, c.OwnerID)
		}
	})

	t.Run("nil subject", func(t *testing.T) {
		count := 0
		for range Candidates(nil, pool) {
			count++
		}
		assert.Zero(t, count)
	})
}
