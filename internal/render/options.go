package render

const defaultWidth = 80

type Options struct {
	Width int
	Theme Theme
}

func DefaultOptions() Options {
	return Options{Width: defaultWidth, Theme: ThemeDark}
}

func (o Options) WithWidth(width int) Options {
	if width > 0 {
		o.Width = width
	}
	return o
}

func (o Options) WithTheme(t Theme) Options {
	o.Theme = t
	return o
}
