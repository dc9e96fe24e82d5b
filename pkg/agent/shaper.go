package agent

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"vce/pkg/model"
)

// Shaper installs the outgoing impairment towards one destination,
// replacing whatever rule was there.
type Shaper interface {
	Replace(ctx context.Context, iface, src, dst string, p model.LinkParams) error
}

// TCSet shapes through the tcconfig `tcset` command.
type TCSet struct {
	Binary string
	run    func(ctx context.Context, name string, args ...string) error
}

func NewTCSet() *TCSet {
	return &TCSet{Binary: "tcset", run: run}
}

func (t *TCSet) Replace(ctx context.Context, iface, src, dst string, p model.LinkParams) error {
	args, err := TCSetArgs(iface, src, dst, p)
	if err != nil {
		return err
	}
	return t.run(ctx, t.Binary, args...)
}

// TCSetArgs builds the tcset argument list. Parameters are emitted in the
// fixed order of model.Params.
func TCSetArgs(iface, src, dst string, p model.LinkParams) ([]string, error) {
	args := []string{iface, "--change", "--src-network", src, "--dst-network", dst}
	for name := range p {
		if _, err := model.ParseParam(string(name)); err != nil {
			return nil, err
		}
	}
	for _, name := range model.Params {
		v, ok := p[name]
		if !ok {
			continue
		}
		s := formatValue(v)
		switch name {
		case model.ParamDelay:
			args = append(args, "--delay", s+"ms")
		case model.ParamRate:
			args = append(args, "--rate", s+"Kbps")
		case model.ParamLoss:
			args = append(args, "--loss", s+"%")
		case model.ParamCorrupt:
			args = append(args, "--corrupt", s)
		default:
			return nil, fmt.Errorf("%w: %s", model.ErrUnknownParam, name)
		}
	}
	return args, nil
}

// formatValue prints 100 as "100" and 3.30 as "3.3".
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v failed: %v output=%s", name, args, err, string(out))
	}
	return nil
}
