package chainhead

import (
	"context"
	"errors"
	"testing"
)

type fakeNumberClient struct {
	n   uint64
	err error
}

func (f fakeNumberClient) BlockNumber(context.Context) (uint64, error) {
	return f.n, f.err
}

func TestRPCLatestBlock(t *testing.T) {
	r := NewRPC(fakeNumberClient{n: 19_000_000})
	got, err := r.LatestBlock(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got != 19_000_000 {
		t.Fatalf("got %d", got)
	}
	r.Close()
}

func TestRPCLatestBlockError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRPC(fakeNumberClient{err: boom})
	if _, err := r.LatestBlock(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	var r Resolver = Static(42)
	got, _ := r.LatestBlock(context.Background())
	if got != 42 {
		t.Fatalf("got %d", got)
	}
}
