package mutation

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func req(w, h float64, fit Fit) Request {
	return Request{
		SourceRef:       "file_abc123",
		Width:           w,
		Height:          h,
		DPIScaleFactors: []float64{1},
		Fit:             fit,
		BackgroundColor: "transparent",
		CDNDomain:       "cdn.myapp.com",
	}
}

func mutationOf(t *testing.T, u string) string {
	t.Helper()
	i := strings.LastIndex(u, "/")
	require.GreaterOrEqual(t, i, 0)
	return u[i+1:]
}

func TestBuild_ResizeFormulas(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
		fit  Fit
		want string
	}{
		{"cover both", 128, 128, Cover, "resize_128x128min,fit_128x128,bg_transparent,auto"},
		{"cover width", 200, 0, Cover, "resize_200min,auto"},
		{"cover height", 0, 90, Cover, "resize_x90min,auto"},
		{"contain both", 300, 150, Contain, "resize_300x150shrink,auto"},
		{"contain width", 300, 0, Contain, "resize_300shrink,auto"},
		{"contain height", 0, 150, Contain, "resize_x150shrink,auto"},
		{"no dimensions", 0, 0, Cover, "auto"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Build(req(tt.w, tt.h, tt.fit))
			require.NoError(t, err)
			assert.Equal(t, tt.want, mutationOf(t, set.Primary))
		})
	}
}

func TestBuild_URLShape(t *testing.T) {
	set, err := Build(req(128, 128, Cover))
	require.NoError(t, err)
	assert.Equal(t,
		"https://cdn.myapp.com/file_abc123/resize_128x128min,fit_128x128,bg_transparent,auto",
		set.Primary)
}

func TestBuild_ScaleVariants(t *testing.T) {
	r := req(100, 50, Contain)
	r.DPIScaleFactors = []float64{2, 1, 1.5}
	set, err := Build(r)
	require.NoError(t, err)

	require.Len(t, set.Variants, 3)
	assert.Equal(t, 2.0, set.Variants[0].Scale)
	assert.Equal(t, "2x", set.Variants[0].Descriptor)
	assert.Equal(t, "resize_200x100shrink,auto", mutationOf(t, set.Variants[0].URL))
	assert.Equal(t, "resize_100x50shrink,auto", mutationOf(t, set.Variants[1].URL))
	assert.Equal(t, "1.5x", set.Variants[2].Descriptor)
	assert.Equal(t, "resize_150x75shrink,auto", mutationOf(t, set.Variants[2].URL))
	assert.Equal(t, set.Variants[1].URL, set.Primary)

	assert.Equal(t,
		set.Variants[0].URL+" 2x, "+set.Variants[1].URL+" 1x, "+set.Variants[2].URL+" 1.5x",
		set.SrcSet())
}

func TestBuild_PrimaryIsOneXWithoutOneInFactors(t *testing.T) {
	r := req(64, 0, Cover)
	r.DPIScaleFactors = []float64{2, 3}
	set, err := Build(r)
	require.NoError(t, err)
	assert.Equal(t, "resize_64min,auto", mutationOf(t, set.Primary))
	assert.Equal(t, "resize_192min,auto", mutationOf(t, set.Variants[1].URL))
}

func TestBuild_RoundsHalfAwayFromZero(t *testing.T) {
	r := req(100.5, 0, Contain)
	r.DPIScaleFactors = []float64{1, 1.5}
	set, err := Build(r)
	require.NoError(t, err)
	assert.Equal(t, "resize_101shrink,auto", mutationOf(t, set.Variants[0].URL))
	// 100.5 * 1.5 = 150.75
	assert.Equal(t, "resize_151shrink,auto", mutationOf(t, set.Variants[1].URL))

	m, err := ResizeMutation(33, 0, Cover, 1.5, "")
	require.NoError(t, err)
	// 49.5 rounds up
	assert.Equal(t, "resize_50min", m)
}

func TestBuild_ExtraMutationOrdering(t *testing.T) {
	r := req(10, 10, Contain)
	r.ExtraMutation = "  blur_5 "
	set, err := Build(r)
	require.NoError(t, err)
	assert.Equal(t, "resize_10x10shrink,blur_5,auto", mutationOf(t, set.Primary))

	r = req(0, 0, Contain)
	r.ExtraMutation = "grayscale"
	set, err = Build(r)
	require.NoError(t, err)
	assert.Equal(t, "grayscale,auto", mutationOf(t, set.Primary))

	r.ExtraMutation = "   "
	set, err = Build(r)
	require.NoError(t, err)
	assert.Equal(t, "auto", mutationOf(t, set.Primary))
}

func TestBuild_DefaultBackground(t *testing.T) {
	r := req(20, 20, Cover)
	r.BackgroundColor = ""
	set, err := Build(r)
	require.NoError(t, err)
	assert.Contains(t, set.Primary, ",bg_transparent,")
}

func TestBuild_ExternalSource(t *testing.T) {
	r := req(128, 128, Cover)
	r.SourceRef = "https://myapp.com/image.jpg"
	set, err := Build(r)
	require.NoError(t, err)

	rest := strings.TrimPrefix(set.Primary, "https://cdn.myapp.com/")
	seg := rest[:strings.Index(rest, "/")]
	require.True(t, strings.HasPrefix(seg, "@ext_"), seg)

	enc := strings.TrimPrefix(seg, "@ext_")
	assert.NotContains(t, enc, "=")
	std := strings.NewReplacer("-", "+", "_", "/").Replace(enc)
	for len(std)%4 != 0 {
		std += "="
	}
	decoded, err := base64.StdEncoding.DecodeString(std)
	require.NoError(t, err)
	assert.Equal(t, "https://myapp.com/image.jpg", string(decoded))
}

func TestPathSegment_RelativeResolution(t *testing.T) {
	tests := []struct {
		ref, base, want string
	}{
		{"/img/a.jpg", "https://myapp.com/shop/item", "https://myapp.com/img/a.jpg"},
		{"./a.jpg", "https://myapp.com/shop/item", "https://myapp.com/shop/a.jpg"},
		{"../a.jpg", "https://myapp.com/shop/item/", "https://myapp.com/shop/a.jpg"},
		{"//static.myapp.com/a.jpg", "https://myapp.com/", "https://static.myapp.com/a.jpg"},
	}
	for _, tt := range tests {
		seg, err := PathSegment(tt.ref, tt.base)
		require.NoError(t, err, tt.ref)
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(seg, "@ext_"))
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(raw), tt.ref)
	}
}

func TestResolveRef_WithoutBase(t *testing.T) {
	abs, err := ResolveRef("//static.myapp.com/a.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, "https://static.myapp.com/a.jpg", abs)

	abs, err = ResolveRef("//static.myapp.com/a.jpg", "http://myapp.com/")
	require.NoError(t, err)
	assert.Equal(t, "http://static.myapp.com/a.jpg", abs)

	abs, err = ResolveRef("https://myapp.com/a.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, "https://myapp.com/a.jpg", abs)

	for _, ref := range []string{"./a.jpg", "../a.jpg", "/img/a.jpg"} {
		_, err := ResolveRef(ref, "")
		assert.ErrorIs(t, err, ErrUnresolvedRef, ref)
	}
}

func TestResolveRef_BadInput(t *testing.T) {
	_, err := ResolveRef("/img/%zz.jpg", "https://myapp.com/")
	assert.ErrorIs(t, err, ErrUnresolvedRef)

	for _, base := range []string{"myapp.com", "/shop/", "ftp://myapp.com/", "https://"} {
		_, err := ResolveRef("./a.jpg", base)
		assert.ErrorIs(t, err, ErrInvalidBaseURL, base)
	}
}

func TestBuild_RelativeRefWithoutBase(t *testing.T) {
	for _, ref := range []string{"./a.jpg", "/img/a.jpg"} {
		r := req(128, 128, Cover)
		r.SourceRef = ref
		_, err := Build(r)
		assert.ErrorIs(t, err, ErrUnresolvedRef, ref)
	}

	r := req(128, 128, Cover)
	r.SourceRef = "//static.myapp.com/a.jpg"
	set, err := Build(r)
	require.NoError(t, err)
	enc := "@ext_" + base64.RawURLEncoding.EncodeToString([]byte("https://static.myapp.com/a.jpg"))
	assert.Contains(t, set.Primary, "/"+enc+"/")
}

func TestPathSegment_InternalVerbatim(t *testing.T) {
	for _, ref := range []string{"file_abc", "http://insecure.example/a.jpg", "a/b.jpg"} {
		assert.False(t, IsExternal(ref), ref)
		seg, err := PathSegment(ref, "")
		require.NoError(t, err)
		assert.Equal(t, ref, seg)
	}
}

func TestResizeMutation_InvalidDimensions(t *testing.T) {
	for _, fit := range []Fit{Contain, Cover} {
		_, err := ResizeMutation(0, 0, fit, 1, "transparent")
		assert.True(t, errors.Is(err, ErrInvalidDimensions), fit.String())
	}
}

func TestBuild_NoScaleFactors(t *testing.T) {
	r := req(10, 10, Cover)
	r.DPIScaleFactors = nil
	_, err := Build(r)
	assert.True(t, errors.Is(err, ErrNoScaleFactors))
}

func TestBuild_NilFitPanics(t *testing.T) {
	assert.Panics(t, func() { _, _ = Build(req(10, 10, nil)) })
}

func TestParseFit(t *testing.T) {
	f, err := ParseFit("contain")
	require.NoError(t, err)
	assert.Equal(t, Contain, f)
	f, err = ParseFit("cover")
	require.NoError(t, err)
	assert.Equal(t, Cover, f)
	_, err = ParseFit("fill")
	assert.Error(t, err)
}
