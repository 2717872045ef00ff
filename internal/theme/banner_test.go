package theme

import (
	"strings"
	"testing"
)

func TestBannerNamesTool(t *testing.T) {
	if !strings.Contains(Banner(), "E A R N F R A M E") {
		t.Fatal("banner does not name the tool")
	}
}
