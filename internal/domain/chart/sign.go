package chart

import (
	"math"
	"strings"
)

// Sign is a zodiac sign.
type Sign string

const (
	Aries       Sign = "aries"
	Taurus      Sign = "taurus"
	Gemini      Sign = "gemini"
	Cancer      Sign = "cancer"
	Leo         Sign = "leo"
	Virgo       Sign = "virgo"
	Libra       Sign = "libra"
	Scorpio     Sign = "scorpio"
	Sagittarius Sign = "sagittarius"
	Capricorn   Sign = "capricorn"
	Aquarius    Sign = "aquarius"
	Pisces      Sign = "pisces"
)

// Signs lists the zodiac in order starting at 0° Aries.
var Signs = []Sign{
	Aries, Taurus, Gemini, Cancer, Leo, Virgo,
	Libra, Scorpio, Sagittarius, Capricorn, Aquarius, Pisces,
}

// Element is one of the four classical elements.
type Element string

const (
	Fire  Element = "fire"
	Earth Element = "earth"
	Air   Element = "air"
	Water Element = "water"
)

// Elements lists the elements in reporting order.
var Elements = []Element{Fire, Earth, Air, Water}

// Modality is one of the three sign qualities.
type Modality string

const (
	Cardinal Modality = "cardinal"
	Fixed    Modality = "fixed"
	Mutable  Modality = "mutable"
)

// Modalities lists the modalities in reporting order.
var Modalities = []Modality{Cardinal, Fixed, Mutable}

var signElements = map[Sign]Element{
	Aries: Fire, Leo: Fire, Sagittarius: Fire,
	Taurus: Earth, Virgo: Earth, Capricorn: Earth,
	Gemini: Air, Libra: Air, Aquarius: Air,
	Cancer: Water, Scorpio: Water, Pisces: Water,
}

var signModalities = map[Sign]Modality{
	Aries: Cardinal, Cancer: Cardinal, Libra: Cardinal, Capricorn: Cardinal,
	Taurus: Fixed, Leo: Fixed, Scorpio: Fixed, Aquarius: Fixed,
	Gemini: Mutable, Virgo: Mutable, Sagittarius: Mutable, Pisces: Mutable,
}

// ParseSign converts a case-insensitive name into a Sign.
func ParseSign(s string) (Sign, bool) {
	sign := Sign(strings.ToLower(strings.TrimSpace(s)))
	_, ok := signElements[sign]
	return sign, ok
}

// IsValid reports whether s is one of the twelve signs.
func (s Sign) IsValid() bool {
	_, ok := signElements[s]
	return ok
}

// ElementOf returns the element of a sign.  The boolean is false for an
// unknown sign.
func ElementOf(s Sign) (Element, bool) {
	e, ok := signElements[s]
	return e, ok
}

// ModalityOf returns the modality of a sign.  The boolean is false for an
// unknown sign.
func ModalityOf(s Sign) (Modality, bool) {
	m, ok := signModalities[s]
	return m, ok
}

// NormalizeLongitude folds any angle into [0, 360).
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

// SignFromLongitude maps an ecliptic longitude to its sign in 30° segments.
// NaN and infinite longitudes have no sign and yield "".
func SignFromLongitude(lon float64) Sign {
	if !isFinite(lon) {
		return ""
	}
	idx := int(NormalizeLongitude(lon) / 30)
	if idx >= len(Signs) {
		idx = len(Signs) - 1
	}
	return Signs[idx]
}
