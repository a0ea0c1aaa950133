package main

import (
	"encoding/json"
	"fmt"
	"image"
	"math/rand"
	"net/http"
	"time"
)

const ZENQUOTES_URL = "https://zenquotes.io/api/random"

type artworkPiece struct {
	Title  string
	Artist string
	URL    string
}

// Public-domain pieces served from Wikimedia Commons.
var artworkCollection = []artworkPiece{
	{
		Title:  "The Starry Night",
		Artist: "Vincent van Gogh",
		URL:    "https://upload.wikimedia.org/wikipedia/commons/thumb/e/ea/Van_Gogh_-_Starry_Night_-_Google_Art_Project.jpg/1280px-Van_Gogh_-_Starry_Night_-_Google_Art_Project.jpg",
	},
	{
		Title:  "The Great Wave off Kanagawa",
		Artist: "Hokusai",
		URL:    "https://upload.wikimedia.org/wikipedia/commons/thumb/0/0a/The_Great_Wave_off_Kanagawa.jpg/1280px-The_Great_Wave_off_Kanagawa.jpg",
	},
	{
		Title:  "The Scream",
		Artist: "Edvard Munch",
		URL:    "https://upload.wikimedia.org/wikipedia/commons/thumb/c/c5/Edvard_Munch%2C_1893%2C_The_Scream%2C_oil%2C_tempera_and_pastel_on_cardboard%2C_91_x_73_cm%2C_National_Gallery_of_Norway.jpg/687px-Edvard_Munch%2C_1893%2C_The_Scream%2C_oil%2C_tempera_and_pastel_on_cardboard%2C_91_x_73_cm%2C_National_Gallery_of_Norway.jpg",
	},
}

type quote struct {
	Text   string
	Author string
}

var fallbackQuotes = []quote{
	{"Art enables us to find ourselves and lose ourselves at the same time.", "Thomas Merton"},
	{"Every artist was first an amateur.", "Ralph Waldo Emerson"},
	{"Art is not what you see, but what you make others see.", "Edgar Degas"},
	{"The purpose of art is washing the dust of daily life off our souls.", "Pablo Picasso"},
	{"Art should comfort the disturbed and disturb the comfortable.", "Cesar A. Cruz"},
	{"Creativity takes courage.", "Henri Matisse"},
}

// ArtworkScreen shows a rotating piece of public-domain artwork with
// an inspirational quote overlaid. Remote failures degrade inside the
// provider: a plain background replaces a missing image and a curated
// quote replaces a missing one, so this screen practically always
// renders.
type ArtworkScreen struct {
	QuoteURL string
	client   *http.Client
	rng      *rand.Rand
}

func NewArtworkScreen() *ArtworkScreen {
	return &ArtworkScreen{
		QuoteURL: ZENQUOTES_URL,
		client:   &http.Client{Timeout: 15 * time.Second},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (a *ArtworkScreen) Name() string { return "artwork" }

func (a *ArtworkScreen) fetchArtwork(piece artworkPiece) (*image.RGBA, error) {
	req, err := http.NewRequest(http.MethodGet, piece.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "inky-dashboard/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", piece.Title, resp.Status)
	}
	return decodeImage(resp.Body, resp.Header.Get("Content-Type"))
}

// fetchQuote pulls one quote from ZenQuotes, falling back to the
// curated list on any failure.
func (a *ArtworkScreen) fetchQuote() quote {
	resp, err := a.client.Get(a.QuoteURL)
	if err == nil {
		defer resp.Body.Close()
		var payload []struct {
			Q string `json:"q"`
			A string `json:"a"`
		}
		if resp.StatusCode == http.StatusOK &&
			json.NewDecoder(resp.Body).Decode(&payload) == nil &&
			len(payload) > 0 && payload[0].Q != "" {
			return quote{Text: payload[0].Q, Author: payload[0].A}
		}
	}
	return fallbackQuotes[a.rng.Intn(len(fallbackQuotes))]
}

func (a *ArtworkScreen) Render(cfg *Config) (*image.RGBA, error) {
	piece := artworkCollection[a.rng.Intn(len(artworkCollection))]

	var frame *image.RGBA
	art, err := a.fetchArtwork(piece)
	if err == nil {
		frame = letterbox(art, cfg.PanelWidth, cfg.PanelHeight, INKY_BLACK)
	} else {
		frame = newFrame(cfg, INKY_WHITE)
		drawRect(frame, 0, 0, cfg.PanelWidth, cfg.PanelHeight/2, INKY_BLUE)
		piece = artworkPiece{Title: "Offline gallery", Artist: ""}
	}

	mediumFace := getFontFace(cfg, "medium")
	smallFace := getFontFace(cfg, "small")
	tinyFace := getFontFace(cfg, "tiny")

	// quote bar across the bottom
	q := a.fetchQuote()
	lines := wrapText(mediumFace, "“"+q.Text+"”", cfg.PanelWidth-80)
	barH := len(lines)*30 + 50
	barY := cfg.PanelHeight - barH - 10
	fillRoundedRect(frame, 10, float64(barY), float64(cfg.PanelWidth-20), float64(barH), 10, INKY_WHITE, INKY_BLACK)

	y := barY + 12
	for _, line := range lines {
		_, y = drawText(frame, line, cfg.PanelWidth/2, y, mediumFace, INKY_BLACK, true)
	}
	if q.Author != "" {
		drawText(frame, "— "+q.Author, cfg.PanelWidth/2, y+4, smallFace, INKY_BLUE, true)
	}

	// artwork caption
	caption := piece.Title
	if piece.Artist != "" {
		caption += " — " + piece.Artist
	}
	drawText(frame, caption, 14, 8, tinyFace, INKY_WHITE, false)

	return quantizeFrame(frame), nil
}
