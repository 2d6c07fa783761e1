// Package bvh reads Biovision hierarchy files and drives their playback.
package bvh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = errors.New("malformed bvh")

// MaxJointDepth bounds how deeply joints may nest below the root.
const MaxJointDepth = 256

// Joint is one node of the skeleton hierarchy. End sites carry no channels.
type Joint struct {
	Name     string
	Offset   [3]float64
	Channels []string
	Children []*Joint
	EndSite  bool
}

// Clip is the parsed header of a BVH file: its skeleton and motion shape.
type Clip struct {
	Root      *Joint
	Joints    []*Joint
	Channels  int
	Frames    int
	FrameTime float64
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c == nil {
		return 0
	}
	return float64(c.Frames) * c.FrameTime
}

// FrameAt maps a playback time to a frame index within the clip.
func (c *Clip) FrameAt(seconds float64) int {
	if c == nil || c.FrameTime <= 0 || c.Frames == 0 || seconds <= 0 {
		return 0
	}
	frame := int(seconds / c.FrameTime)
	if frame >= c.Frames {
		frame = c.Frames - 1
	}
	return frame
}

type parser struct {
	scanner *bufio.Scanner
	line    int
	tokens  []string
	clip    *Clip
}

// Parse reads the HIERARCHY and MOTION sections and checks that every frame
// carries the channel count declared by the hierarchy.
func Parse(r io.Reader) (*Clip, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	p := &parser{scanner: scanner, clip: &Clip{}}
	if err := p.parseHierarchy(); err != nil {
		return nil, err
	}
	if err := p.parseMotion(); err != nil {
		return nil, err
	}
	return p.clip, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformed, p.line, fmt.Sprintf(format, args...))
}

// next returns the next whitespace separated token of the hierarchy section.
func (p *parser) next() (string, error) {
	for len(p.tokens) == 0 {
		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return "", fmt.Errorf("read bvh: %w", err)
			}
			return "", p.errorf("unexpected end of file")
		}
		p.line++
		p.tokens = strings.Fields(p.scanner.Text())
	}
	tok := p.tokens[0]
	p.tokens = p.tokens[1:]
	return tok, nil
}

func (p *parser) expect(want string) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if !strings.EqualFold(tok, want) {
		return p.errorf("expected %q, got %q", want, tok)
	}
	return nil
}

func (p *parser) parseHierarchy() error {
	if err := p.expect("HIERARCHY"); err != nil {
		return err
	}
	if err := p.expect("ROOT"); err != nil {
		return err
	}
	root, err := p.parseJoint(false, 0)
	if err != nil {
		return err
	}
	p.clip.Root = root
	return p.expect("MOTION")
}

func (p *parser) parseJoint(endSite bool, depth int) (*Joint, error) {
	if depth > MaxJointDepth {
		return nil, p.errorf("joints nested deeper than %d", MaxJointDepth)
	}
	name, err := p.next()
	if err != nil {
		return nil, err
	}
	joint := &Joint{Name: name, EndSite: endSite}
	if endSite {
		// "End Site": name token is "Site".
		joint.Name = "End Site"
	}
	if !endSite {
		p.clip.Joints = append(p.clip.Joints, joint)
	}

	if err := p.expect("{"); err != nil {
		return nil, err
	}

	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch strings.ToUpper(tok) {
		case "OFFSET":
			for i := range joint.Offset {
				v, err := p.float()
				if err != nil {
					return nil, err
				}
				joint.Offset[i] = v
			}
		case "CHANNELS":
			if endSite {
				return nil, p.errorf("end site %q declares channels", name)
			}
			raw, err := p.next()
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 || n > 6 {
				return nil, p.errorf("invalid channel count %q", raw)
			}
			for i := 0; i < n; i++ {
				ch, err := p.next()
				if err != nil {
					return nil, err
				}
				joint.Channels = append(joint.Channels, ch)
			}
			p.clip.Channels += n
		case "JOINT":
			if endSite {
				return nil, p.errorf("end site cannot contain joints")
			}
			child, err := p.parseJoint(false, depth+1)
			if err != nil {
				return nil, err
			}
			joint.Children = append(joint.Children, child)
		case "END":
			if endSite {
				return nil, p.errorf("nested end site")
			}
			child, err := p.parseJoint(true, depth+1)
			if err != nil {
				return nil, err
			}
			joint.Children = append(joint.Children, child)
		case "}":
			return joint, nil
		default:
			return nil, p.errorf("unexpected token %q", tok)
		}
	}
}

func (p *parser) float() (float64, error) {
	tok, err := p.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, p.errorf("invalid number %q", tok)
	}
	return v, nil
}

func (p *parser) parseMotion() error {
	if len(p.tokens) > 0 {
		return p.errorf("unexpected data after MOTION")
	}

	frames, err := p.header("Frames:")
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(frames)
	if err != nil || n < 0 {
		return p.errorf("invalid frame count %q", frames)
	}
	p.clip.Frames = n

	ft, err := p.header("Frame Time:")
	if err != nil {
		return err
	}
	frameTime, err := strconv.ParseFloat(ft, 64)
	if err != nil || frameTime <= 0 || math.IsNaN(frameTime) || math.IsInf(frameTime, 0) {
		return p.errorf("invalid frame time %q", ft)
	}
	p.clip.FrameTime = frameTime

	seen := 0
	for p.scanner.Scan() {
		p.line++
		fields := strings.Fields(p.scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if seen == n {
			return p.errorf("more frames than the declared %d", n)
		}
		if len(fields) != p.clip.Channels {
			return p.errorf("frame %d has %d values, expected %d", seen, len(fields), p.clip.Channels)
		}
		for _, f := range fields {
			if _, err := strconv.ParseFloat(f, 64); err != nil {
				return p.errorf("frame %d: invalid number %q", seen, f)
			}
		}
		seen++
	}
	if err := p.scanner.Err(); err != nil {
		return fmt.Errorf("read bvh: %w", err)
	}
	if seen != n {
		return p.errorf("declared %d frames, found %d", n, seen)
	}
	return nil
}

// header reads a "Label: value" line, skipping blank lines.
func (p *parser) header(label string) (string, error) {
	for p.scanner.Scan() {
		p.line++
		text := strings.TrimSpace(p.scanner.Text())
		if text == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(text), strings.ToLower(label)) {
			return "", p.errorf("expected %q", label)
		}
		return strings.TrimSpace(text[len(label):]), nil
	}
	if err := p.scanner.Err(); err != nil {
		return "", fmt.Errorf("read bvh: %w", err)
	}
	return "", p.errorf("missing %q", label)
}
