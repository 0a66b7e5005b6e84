package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkTP1MovesStopToBreakEven(t *testing.T) {
	p := Position{
		BrokerTradeID: "42",
		Direction:     DirectionLong,
		EntryPrice:    100,
		TP1:           110,
		TP2:           120,
		SL:            90,
		Status:        PositionStatusOpen,
	}

	p.MarkTP1(37.5)

	assert.True(t, p.TP1Hit)
	assert.True(t, p.PartialClosed)
	assert.Equal(t, PositionStatusPartial, p.Status)
	assert.Equal(t, 100.0, p.SL)
	assert.Equal(t, 37.5, p.RealizedPL)
	assert.True(t, p.Active())
	assert.Nil(t, p.DateClosed)
}

func TestMarkTP2ClosesPosition(t *testing.T) {
	now := time.Now().UTC()
	p := Position{Direction: DirectionLong, EntryPrice: 100, Status: PositionStatusPartial, TP1Hit: true, RealizedPL: 37.5}

	p.MarkTP2(120, 25, now)

	assert.True(t, p.TP2Hit)
	assert.Equal(t, PositionStatusClosed, p.Status)
	require.NotNil(t, p.ClosePrice)
	assert.Equal(t, 120.0, *p.ClosePrice)
	require.NotNil(t, p.DateClosed)
	assert.Equal(t, now, *p.DateClosed)
	assert.Equal(t, 62.5, p.RealizedPL)
	assert.True(t, p.IsProfit)
	assert.False(t, p.IsLoss)
	assert.False(t, p.Active())
}

func TestMarkSLRecordsLoss(t *testing.T) {
	now := time.Now().UTC()
	p := Position{Direction: DirectionLong, EntryPrice: 100, Status: PositionStatusOpen}

	p.MarkSL(90, -50, now)

	assert.True(t, p.SLHit)
	assert.Equal(t, PositionStatusClosed, p.Status)
	assert.True(t, p.IsLoss)
	assert.False(t, p.IsProfit)
	assert.Equal(t, -50.0, p.RealizedPL)
}

func TestBreakEvenStopAfterTP1IsNotALoss(t *testing.T) {
	now := time.Now().UTC()
	p := Position{Direction: DirectionLong, EntryPrice: 100, Status: PositionStatusOpen}

	p.MarkTP1(37.5)
	p.MarkSL(100, 0, now)

	assert.True(t, p.TP1Hit)
	assert.True(t, p.SLHit)
	assert.Equal(t, 37.5, p.RealizedPL)
	assert.True(t, p.IsProfit)
}
