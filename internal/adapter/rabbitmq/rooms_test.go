package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomPatterns(t *testing.T) {
	assert.Equal(t, "location.loc-1.#", LocationRoom("loc-1"))
	assert.Equal(t, "kitchen.loc-1.#", KitchenRoom("loc-1"))
}

func TestRoomSetAddRemove(t *testing.T) {
	rs := newRoomSet()

	assert.True(t, rs.Add("location.loc-1.#"))
	assert.False(t, rs.Add("location.loc-1.#"), "joining twice is a no-op")

	assert.True(t, rs.Remove("location.loc-1.#"))
	assert.False(t, rs.Remove("location.loc-1.#"), "leaving twice is a no-op")
	assert.Empty(t, rs.List())
}

func TestRoomSetListIsSorted(t *testing.T) {
	rs := newRoomSet()
	rs.Add("location.loc-2.#")
	rs.Add("kitchen.loc-1.#")
	rs.Add("location.loc-1.#")

	assert.Equal(t, []string{
		"kitchen.loc-1.#",
		"location.loc-1.#",
		"location.loc-2.#",
	}, rs.List())
}
