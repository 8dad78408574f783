package server

import (
	"context"
	"testing"

	"google.golang.org/grpc"
)

func TestUnaryChainOrder(t *testing.T) {
	var order []string

	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name+"-in")
			resp, err := handler(ctx, req)
			order = append(order, name+"-out")
			return resp, err
		}
	}

	chain := UnaryChain(mk("a"), nil, mk("b"))
	info := &grpc.UnaryServerInfo{FullMethod: "/x.y.Service/Op"}

	resp, err := chain(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		order = append(order, "handler")
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	want := []string{"a-in", "b-in", "handler", "b-out", "a-out"}
	if len(order) != len(want) {
		t.Fatalf("order mismatch: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestUnaryRecoveryInterceptor(t *testing.T) {
	ic := UnaryRecoveryInterceptor(nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/x.y.Service/Panics"}

	_, err := ic(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	if err == nil {
		t.Fatalf("expected error after panic recovery")
	}
}
