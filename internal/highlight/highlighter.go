package highlight

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Mode selects the rendering target.
type Mode string

const (
	ModeHTML  Mode = "html"
	ModeImage Mode = "image"
)

const (
	defaultStyle   = "friendly"
	tabWidth       = 4
	imagePadding   = 8
	imageLineSpace = 3
)

// ErrUnsupportedSyntax is returned for tags outside Languages.
var ErrUnsupportedSyntax = errors.New("highlight: unsupported syntax")

// Output carries a rendering. Implemented is false when the requested mode is not supported.
type Output struct {
	Data        []byte
	ContentType string
	Implemented bool
}

// Config tunes the highlighter.
type Config struct {
	Style string
}

// Highlighter renders paste content as highlighted HTML or a PNG image.
type Highlighter struct {
	style     *chroma.Style
	formatter *html.Formatter
}

// New constructs a Highlighter. An unknown style falls back to the chroma default.
func New(cfg Config) *Highlighter {
	styleName := strings.TrimSpace(cfg.Style)
	if styleName == "" {
		styleName = defaultStyle
	}
	return &Highlighter{
		style: styles.Get(styleName),
		formatter: html.New(
			html.WithClasses(true),
			html.WithLineNumbers(true),
			html.LineNumbersInTable(true),
			html.TabWidth(tabWidth),
		),
	}
}

// Render converts content under syntax tag into the requested mode.
func (h *Highlighter) Render(content, tag string, mode Mode) (Output, error) {
	language, ok := languagesByTag[tag]
	if !ok {
		return Output{}, fmt.Errorf("%w: %q", ErrUnsupportedSyntax, tag)
	}

	switch mode {
	case ModeHTML:
		data, err := h.renderHTML(content, language)
		if err != nil {
			return Output{}, err
		}
		return Output{Data: data, ContentType: "text/html; charset=utf-8", Implemented: true}, nil
	case ModeImage:
		data, err := h.renderImage(content, language)
		if err != nil {
			return Output{}, err
		}
		return Output{Data: data, ContentType: "image/png", Implemented: true}, nil
	default:
		return Output{Implemented: false}, nil
	}
}

// CSS returns the stylesheet matching the class-based HTML output.
func (h *Highlighter) CSS() ([]byte, error) {
	var buffer bytes.Buffer
	if err := h.formatter.WriteCSS(&buffer, h.style); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (h *Highlighter) tokens(content string, language Language) ([]chroma.Token, error) {
	lexer := lexers.Get(language.Lexer)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return nil, fmt.Errorf("highlight: tokenise %s: %w", language.Tag, err)
	}
	return iterator.Tokens(), nil
}

func (h *Highlighter) renderHTML(content string, language Language) ([]byte, error) {
	tokens, err := h.tokens(content, language)
	if err != nil {
		return nil, err
	}
	var buffer bytes.Buffer
	if err := h.formatter.Format(&buffer, h.style, chroma.Literator(tokens...)); err != nil {
		return nil, fmt.Errorf("highlight: format html: %w", err)
	}
	return buffer.Bytes(), nil
}

func (h *Highlighter) renderImage(content string, language Language) ([]byte, error) {
	expanded := strings.ReplaceAll(content, "\t", strings.Repeat(" ", tabWidth))
	expanded = strings.TrimRight(expanded, "\n")
	tokens, err := h.tokens(expanded, language)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(expanded, "\n")
	maxColumns := 1
	for _, line := range lines {
		if width := utf8.RuneCountInString(line); width > maxColumns {
			maxColumns = width
		}
	}

	face := basicfont.Face7x13
	charWidth := face.Advance
	lineHeight := face.Height + imageLineSpace
	gutterColumns := len(strconv.Itoa(len(lines))) + 2

	width := imagePadding*2 + (gutterColumns+maxColumns)*charWidth
	height := imagePadding*2 + len(lines)*lineHeight
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))

	background := h.colour(chroma.Background, true, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	foreground := h.colour(chroma.Text, false, color.RGBA{A: 0xff})
	gutter := h.colour(chroma.LineNumbers, false, color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff})
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	drawer := &font.Drawer{Dst: canvas, Face: face}
	baseline := func(line int) int {
		return imagePadding + line*lineHeight + face.Ascent
	}
	for index := range lines {
		number := strconv.Itoa(index + 1)
		x := imagePadding + (gutterColumns-1-len(number))*charWidth
		drawer.Src = image.NewUniform(gutter)
		drawer.Dot = fixed.P(x, baseline(index))
		drawer.DrawString(number)
	}

	line, column := 0, 0
	for _, token := range tokens {
		drawer.Src = image.NewUniform(h.tokenColour(token.Type, foreground))
		segments := strings.Split(token.Value, "\n")
		for segmentIndex, segment := range segments {
			if segmentIndex > 0 {
				line++
				column = 0
			}
			if segment == "" || line >= len(lines) {
				continue
			}
			drawer.Dot = fixed.P(imagePadding+(gutterColumns+column)*charWidth, baseline(line))
			drawer.DrawString(segment)
			column += utf8.RuneCountInString(segment)
		}
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, canvas); err != nil {
		return nil, fmt.Errorf("highlight: encode png: %w", err)
	}
	return buffer.Bytes(), nil
}

func (h *Highlighter) tokenColour(tokenType chroma.TokenType, fallback color.RGBA) color.RGBA {
	entry := h.style.Get(tokenType)
	if !entry.Colour.IsSet() {
		return fallback
	}
	return color.RGBA{R: entry.Colour.Red(), G: entry.Colour.Green(), B: entry.Colour.Blue(), A: 0xff}
}

func (h *Highlighter) colour(tokenType chroma.TokenType, background bool, fallback color.RGBA) color.RGBA {
	entry := h.style.Get(tokenType)
	value := entry.Colour
	if background {
		value = entry.Background
	}
	if !value.IsSet() {
		return fallback
	}
	return color.RGBA{R: value.Red(), G: value.Green(), B: value.Blue(), A: 0xff}
}
