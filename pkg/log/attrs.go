package log

import "log/slog"

func RunID[T ~string](id T) slog.Attr {
	return slog.String("run_id", string(id))
}

func Node[T ~string](name T) slog.Attr {
	return slog.String("node", string(name))
}

func Analyst[T ~string](key T) slog.Attr {
	return slog.String("analyst", string(key))
}

func Ticker(symbol string) slog.Attr {
	return slog.String("ticker", symbol)
}

func Category[T ~string](category T) slog.Attr {
	return slog.String("category", string(category))
}

func Provider[T ~string](provider T) slog.Attr {
	return slog.String("provider", string(provider))
}

func Model(name string) slog.Attr {
	return slog.String("model", name)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
