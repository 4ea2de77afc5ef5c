package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
)

var hookNames = map[entities.HookKind]string{
	entities.HookSwap:              "swap",
	entities.HookLendingDeposit:    "lendingDeposit",
	entities.HookStake:             "stake",
	entities.HookTreasuryRebalance: "treasuryRebalance",
}

// HookName returns the registered name of a hook tag
func HookName(kind entities.HookKind) (string, bool) {
	name, ok := hookNames[kind]
	return name, ok
}

// ParseHookKind accepts a registered hook name or its tag ("0x04", "4")
func ParseHookKind(s string) (entities.HookKind, error) {
	s = strings.TrimSpace(s)
	for kind, name := range hookNames {
		if strings.EqualFold(name, s) {
			return kind, nil
		}
	}

	tag, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, domainerrors.InvalidRequestError("hook", fmt.Sprintf("unknown hook %q", s))
	}
	kind := entities.HookKind(tag)
	if _, ok := hookNames[kind]; !ok {
		return 0, domainerrors.InvalidRequestError("hook", fmt.Sprintf("unknown hook tag 0x%02x", tag))
	}
	return kind, nil
}

// ValidateHook rejects hook specs whose tag is outside the closed set
func ValidateHook(h *entities.HookSpec) error {
	if h == nil {
		return nil
	}
	if _, ok := hookNames[h.Kind]; !ok {
		return domainerrors.InvalidRequestError("hook", fmt.Sprintf("unknown hook tag 0x%02x", byte(h.Kind)))
	}
	return nil
}
