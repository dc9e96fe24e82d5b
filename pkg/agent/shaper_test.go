package agent

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"vce/pkg/model"
)

func TestTCSetArgs(t *testing.T) {
	base := []string{"eth0", "--change", "--src-network", "10.0.1.1", "--dst-network", "10.0.1.2"}
	tests := []struct {
		name string
		p    model.LinkParams
		want []string
	}{
		{"blocked", model.Blocked(), []string{"--loss", "100%"}},
		{"fractional delay", model.Delayed(3.336), []string{"--delay", "3.336ms"}},
		{"integral delay", model.Delayed(2), []string{"--delay", "2ms"}},
		{"all in fixed order", model.LinkParams{
			model.ParamCorrupt: 0.5,
			model.ParamLoss:    1.25,
			model.ParamRate:    1000,
			model.ParamDelay:   10.5,
		}, []string{"--delay", "10.5ms", "--rate", "1000Kbps", "--loss", "1.25%", "--corrupt", "0.5"}},
		{"empty", model.LinkParams{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TCSetArgs("eth0", "10.0.1.1", "10.0.1.2", tt.p)
			if err != nil {
				t.Fatal(err)
			}
			want := append(append([]string{}, base...), tt.want...)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestTCSetArgs_UnknownParam(t *testing.T) {
	_, err := TCSetArgs("eth0", "a", "b", model.LinkParams{"jitter": 1})
	if !errors.Is(err, model.ErrUnknownParam) {
		t.Errorf("err = %v, want ErrUnknownParam", err)
	}
}

func TestTCSet_Replace(t *testing.T) {
	var gotName string
	var gotArgs []string
	ts := &TCSet{Binary: "/usr/local/bin/tcset", run: func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}}
	if err := ts.Replace(context.Background(), "eth1", "10.0.0.1", "10.0.0.2", model.Blocked()); err != nil {
		t.Fatal(err)
	}
	if gotName != "/usr/local/bin/tcset" || gotArgs[len(gotArgs)-1] != "100%" {
		t.Errorf("ran %s %v", gotName, gotArgs)
	}
}

func TestRun_MissingBinary(t *testing.T) {
	if err := run(context.Background(), "vce-no-such-binary"); err == nil {
		t.Error("expected error for missing binary")
	}
}
