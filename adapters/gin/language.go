package demogin

import (
	"strings"

	"github.com/PaulFidika/demogate/adapters/ginutil"
	demolang "github.com/PaulFidika/demogate/lang"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

type LanguageConfig struct {
	Supported  []string
	Default    string
	QueryParam string
	CookieName string
}

func (c *LanguageConfig) defaulted() LanguageConfig {
	var out LanguageConfig
	if c != nil {
		out = *c
	}
	if len(out.Supported) == 0 {
		out.Supported = demolang.Supported()
	}
	if strings.TrimSpace(out.Default) == "" {
		out.Default = demolang.Default
	}
	if strings.TrimSpace(out.QueryParam) == "" {
		out.QueryParam = "lang"
	}
	if strings.TrimSpace(out.CookieName) == "" {
		out.CookieName = "lang"
	}
	return out
}

type languageResolver struct {
	cfg     LanguageConfig
	tags    []language.Tag
	bases   map[string]struct{}
	matcher language.Matcher
}

func newLanguageResolver(cfg LanguageConfig) *languageResolver {
	r := &languageResolver{cfg: cfg, bases: map[string]struct{}{}}
	// The default goes first so the matcher falls back to it.
	ordered := append([]string{cfg.Default}, cfg.Supported...)
	for _, s := range ordered {
		base := baseOf(s)
		if base == "" {
			continue
		}
		if _, dup := r.bases[base]; dup {
			continue
		}
		r.bases[base] = struct{}{}
		r.tags = append(r.tags, language.Make(base))
	}
	r.matcher = language.NewMatcher(r.tags)
	return r
}

// baseOf reduces a tag like "pt-BR" to its base language "pt".
func baseOf(s string) string {
	t, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	b, conf := t.Base()
	if conf == language.No {
		return ""
	}
	return b.String()
}

func (r *languageResolver) supported(s string) string {
	b := baseOf(s)
	if _, ok := r.bases[b]; ok {
		return b
	}
	return ""
}

// resolve applies `?lang` > `/:lang/` path prefix > cookie > Accept-Language > default.
func (r *languageResolver) resolve(c *gin.Context) string {
	if l := r.supported(c.Query(r.cfg.QueryParam)); l != "" {
		return l
	}
	path := strings.TrimLeft(c.Request.URL.Path, "/")
	if i := strings.IndexByte(path, '/'); i == 2 {
		if l := r.supported(path[:i]); l != "" {
			return l
		}
	}
	if v, err := c.Cookie(r.cfg.CookieName); err == nil {
		if l := r.supported(v); l != "" {
			return l
		}
	}
	if h := c.GetHeader("Accept-Language"); h != "" {
		prefs, _, err := language.ParseAcceptLanguage(h)
		if err == nil && len(prefs) > 0 {
			_, idx, conf := r.matcher.Match(prefs...)
			if conf != language.No {
				return r.tags[idx].String()
			}
		}
	}
	return r.tags[0].String()
}

// LanguageMiddleware infers the request language and attaches it to the
// request context for localized prompts.
func LanguageMiddleware(cfg *LanguageConfig) gin.HandlerFunc {
	r := newLanguageResolver(cfg.defaulted())
	return func(g *gin.Context) {
		l := r.resolve(g)
		g.Set(ginutil.CtxLanguage, l)
		g.Request = g.Request.WithContext(demolang.WithLanguage(g.Request.Context(), l))
		g.Next()
	}
}
