package render

import (
	"image/color"

	"github.com/chenBenjamin97/pose-compare/pkg/align"
	"github.com/chenBenjamin97/pose-compare/pkg/pose"
	"github.com/chenBenjamin97/pose-compare/pkg/utils"
)

//Tier holds the glow and solid size of one primitive type
type Tier struct {
	Glow  float64 `mapstructure:"glow" json:"glow"`
	Solid float64 `mapstructure:"solid" json:"solid"`
}

//Config is the renderer's configuration surface
type Config struct {
	VisibilityThreshold float64 `mapstructure:"visibility-threshold" json:"visibilityThreshold"`
	//Line widths in pixels
	Line Tier `mapstructure:"line" json:"line"`
	//Point radii in pixels
	Point Tier `mapstructure:"point" json:"point"`
	//GlowAlpha is the opacity of the glow pass, 0..1
	GlowAlpha float64 `mapstructure:"glow-alpha" json:"glowAlpha"`
}

//DefaultConfig returns the stock look: 12/3 px lines, 8/3 px discs, 20% glow, 0.3 visibility
func DefaultConfig() Config {
	return Config{
		VisibilityThreshold: utils.VisibilityThreshold,
		Line:                Tier{Glow: 12, Solid: 3},
		Point:               Tier{Glow: 8, Solid: 3},
		GlowAlpha:           0.2,
	}
}

//Palette is the solid color of one group, the glow color derives from it
type Palette struct {
	Solid color.RGBA
}

//Profile assigns colors to skeleton groups. Highlight groups are drawn after every other group.
type Profile struct {
	Default   Palette
	Groups    map[pose.Group]Palette
	Highlight []pose.Group
}

var (
	//Turquoise is the body color of the first pose
	Turquoise = color.RGBA{R: 0x40, G: 0xE0, B: 0xD0, A: 0xFF}
	//NeonPink is the highlight color of the first pose and the body color of the second
	NeonPink = color.RGBA{R: 0xFF, G: 0x6C, B: 0xD6, A: 0xFF}
	//Amber is the highlight color of the second pose
	Amber = color.RGBA{R: 0xFF, G: 0xBF, B: 0x00, A: 0xFF}
)

//DefaultProfile draws the body turquoise with the right arm in neon pink on top
func DefaultProfile() Profile {
	return Profile{
		Default:   Palette{Solid: Turquoise},
		Groups:    map[pose.Group]Palette{pose.RightArm: {Solid: NeonPink}},
		Highlight: []pose.Group{pose.RightArm},
	}
}

//SecondProfile is used for the second pose of a comparison so both skeletons stay apart when overlaid
func SecondProfile() Profile {
	return Profile{
		Default:   Palette{Solid: NeonPink},
		Groups:    map[pose.Group]Palette{pose.RightArm: {Solid: Amber}},
		Highlight: []pose.Group{pose.RightArm},
	}
}

func (p Profile) palette(g pose.Group) Palette {
	if pal, ok := p.Groups[g]; ok {
		return pal
	}
	return p.Default
}

func (p Profile) highlighted(g pose.Group) bool {
	for _, h := range p.Highlight {
		if h == g {
			return true
		}
	}
	return false
}

//Renderer draws a pose's skeleton graph and keypoints onto a Surface
type Renderer struct {
	cfg     Config
	profile Profile
}

//NewRenderer returns a renderer for cfg and profile
func NewRenderer(cfg Config, profile Profile) *Renderer {
	return &Renderer{cfg: cfg, profile: profile}
}

//Config returns the renderer's configuration
func (r *Renderer) Config() Config {
	return r.cfg
}

//Render draws p onto s. The surface is expected to be sized to the frame p was detected on.
//Connections with a missing endpoint are skipped silently, partial detections are normal.
func (r *Renderer) Render(p *pose.Pose, s Surface) {
	if p == nil {
		return
	}

	//base layer first, highlighted limbs on top
	r.drawLayer(p, s, false)
	r.drawLayer(p, s, true)
}

//RenderAligned draws p through the alignment transform t, as done for the matching raw frame
func (r *Renderer) RenderAligned(p *pose.Pose, t align.Transform, s Surface) {
	r.Render(p, Transformed(s, t))
}

func (r *Renderer) drawLayer(p *pose.Pose, s Surface, highlight bool) {
	for _, c := range pose.Connections {
		if r.profile.highlighted(c.Group) != highlight {
			continue
		}
		a, ok := p.Get(c.A)
		if !ok {
			continue
		}
		b, ok := p.Get(c.B)
		if !ok {
			continue
		}
		if !a.Visible(r.cfg.VisibilityThreshold) || !b.Visible(r.cfg.VisibilityThreshold) {
			continue
		}

		pal := r.profile.palette(c.Group)
		from, to := align.Point{X: a.X, Y: a.Y}, align.Point{X: b.X, Y: b.Y}
		s.DrawLine(from, to, Stroke{Color: r.glow(pal), Width: r.cfg.Line.Glow, RoundCap: true})
		s.DrawLine(from, to, Stroke{Color: pal.Solid, Width: r.cfg.Line.Solid, RoundCap: true})
	}

	for _, name := range pose.Names() {
		kp, ok := p.Get(name)
		if !ok || !kp.Visible(r.cfg.VisibilityThreshold) {
			continue
		}
		group := pose.GroupOf(name)
		if r.profile.highlighted(group) != highlight {
			continue
		}

		pal := r.profile.palette(group)
		center := align.Point{X: kp.X, Y: kp.Y}
		s.DrawDisc(center, r.cfg.Point.Glow, Fill{Color: r.glow(pal)})
		s.DrawDisc(center, r.cfg.Point.Solid, Fill{Color: pal.Solid})
	}
}

func (r *Renderer) glow(p Palette) color.RGBA {
	c := p.Solid
	c.A = uint8(r.cfg.GlowAlpha*255 + 0.5)
	return c
}
