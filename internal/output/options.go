package output

import "io"

// Option configures a Printer.
type Option func(*Printer)

// WithStyles styles output with provider. An unavailable provider is ignored.
func WithStyles(provider StyleProvider) Option {
	return func(p *Printer) {
		if provider != nil && provider.IsAvailable() {
			p.styles = provider
		}
	}
}

// WithWriter sets the destination. Default is os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(p *Printer) {
		if w != nil {
			p.w = w
		}
	}
}

// PlainText disables styling regardless of option order.
func PlainText() Option {
	return func(p *Printer) {
		p.plain = true
	}
}
