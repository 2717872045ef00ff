package frame

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"earnframe/internal/model"
	"earnframe/internal/render"
	"earnframe/internal/util"
)

const (
	bgDefault     = "#E7C4E1"
	bgRenderError = "#1DA1F2"
	colorError    = "#FF0000"

	// maxMessage keeps error text within the lines a card can show.
	maxMessage = 160
)

func landingCard(title, symbol string) render.Card {
	return render.Card{
		Background: bgDefault,
		Title:      title,
		Lines:      []render.Line{{Text: fmt.Sprintf("Check your %s earnings", symbol), Size: 40}},
	}
}

func missingFIDCard() render.Card {
	return render.Card{Background: bgDefault, Title: "Error: No FID"}
}

func promptCard(symbol string, both bool) render.Card {
	verb := "like or recast"
	if both {
		verb = "like and recast"
	}
	return render.Card{
		Background: bgDefault,
		Title:      "Please " + verb,
		Lines:      []render.Line{{Text: fmt.Sprintf("You need to %s this frame to view your %s stats.", verb, symbol), Size: 40}},
	}
}

func renderErrorCard(err error) render.Card {
	msg := "An unknown error occurred during rendering"
	if err != nil {
		msg = util.Truncate(err.Error(), maxMessage)
	}
	return render.Card{
		Background: bgRenderError,
		Title:      "Render Error",
		Lines:      []render.Line{{Text: msg, Size: 44}},
	}
}

// resultCard assembles the stats panel. Exactly one of info and fetchErr is
// expected to be set; neither means no data was available.
func resultCard(fid model.FID, in *model.Interactor, info *model.EarningsInfo, fetchErr error, symbol string) (render.Card, error) {
	card := render.Card{Background: bgDefault, Avatar: avatarFor(fid, in, info)}
	switch {
	case fetchErr != nil:
		card.Lines = []render.Line{{Text: "Error: " + util.Truncate(fetchErr.Error(), maxMessage), Size: 38, Color: colorError}}
	case info != nil:
		today, err := formatAmount(info.TodayEarnings)
		if err != nil {
			return render.Card{}, err
		}
		lifetime, err := formatAmount(info.LifetimeEarnings)
		if err != nil {
			return render.Card{}, err
		}
		card.Lines = []render.Line{
			{Text: fmt.Sprintf("%s %s today", today, symbol), Size: 42},
			{Text: fmt.Sprintf("%s %s all-time", lifetime, symbol), Size: 42},
		}
	default:
		card.Lines = []render.Line{{Text: "No user data available", Size: 32}}
	}
	return card, nil
}

func avatarFor(fid model.FID, in *model.Interactor, info *model.EarningsInfo) *render.Avatar {
	a := &render.Avatar{Captions: []string{"FID: " + fid.String()}}
	var name string
	if in != nil {
		a.URL = in.PfpURL
		name = in.DisplayName
	}
	if info != nil {
		if a.URL == "" && info.ProfileImage != nil {
			a.URL = *info.ProfileImage
		}
		if name == "" && info.ProfileName != nil {
			name = *info.ProfileName
		}
		if info.FarScore != nil {
			a.Captions = append(a.Captions, "Farscore: "+strconv.FormatFloat(*info.FarScore, 'f', 2, 64))
		}
	}
	a.Initial = initial(name)
	return a
}

// initial is the upper-cased first letter of name, or "U".
func initial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "U"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}

// formatAmount renders a decimal string with two fraction digits.
func formatAmount(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid earnings amount %q", s)
	}
	return d.StringFixed(2), nil
}
