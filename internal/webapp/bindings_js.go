//go:build js && wasm

package webapp

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"syscall/js"

	"github.com/clawinfra/reviewsync/internal/config"
	"github.com/clawinfra/reviewsync/internal/connectivity"
	"github.com/clawinfra/reviewsync/internal/notify"
	"github.com/clawinfra/reviewsync/internal/store"
)

var (
	globalMu  sync.Mutex
	globalApp *App
)

// Register installs the reviewsync global. Call it once from main before
// blocking forever.
func Register() {
	js.Global().Set("reviewsync", js.ValueOf(map[string]any{
		"start":        js.FuncOf(jsStart),
		"login":        js.FuncOf(jsLogin),
		"logout":       js.FuncOf(jsLogout),
		"submitReview": js.FuncOf(jsSubmitReview),
		"isPending":    js.FuncOf(jsIsPending),
		"clear":        js.FuncOf(jsClear),
		"sync":         js.FuncOf(jsSync),
		"status":       js.FuncOf(jsStatus),
	}))
}

func current() *App {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalApp
}

func jsStart(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return jsonError("start requires a config JSON argument")
	}
	var cfg Config
	if err := json.Unmarshal([]byte(args[0].String()), &cfg); err != nil {
		return jsonError("invalid config: " + err.Error())
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalApp != nil {
		return globalApp.StatusJSON()
	}

	slot, err := store.NewBrowserSlot()
	if err != nil {
		return jsonError(err.Error())
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return jsonError(err.Error())
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	app, err := New(cfg, slot, connectivity.BrowserOnline(), notify.Func(notifyPage), logger)
	if err != nil {
		return jsonError(err.Error())
	}
	app.Start(context.Background(), connectivity.BrowserSource{})
	globalApp = app
	return app.StatusJSON()
}

func jsLogin(_ js.Value, args []js.Value) any {
	app := current()
	if app == nil {
		return jsonError("not started")
	}
	if len(args) < 1 {
		return jsonError("login requires a token")
	}
	username := ""
	if len(args) > 1 && args[1].Type() == js.TypeString {
		username = args[1].String()
	}
	if err := app.Login(args[0].String(), username); err != nil {
		return jsonError(err.Error())
	}
	return app.StatusJSON()
}

func jsLogout(js.Value, []js.Value) any {
	app := current()
	if app == nil {
		return jsonError("not started")
	}
	app.Logout()
	return app.StatusJSON()
}

func jsSubmitReview(_ js.Value, args []js.Value) any {
	app := current()
	if app == nil || len(args) < 2 {
		return rejected("submitReview requires (lessonId, score) after start")
	}
	lessonID, score := args[0].String(), args[1].Float()
	return promise(func() (any, error) {
		out, err := app.SubmitReview(context.Background(), lessonID, score)
		return out, err
	})
}

func jsIsPending(_ js.Value, args []js.Value) any {
	app := current()
	if app == nil || len(args) < 1 {
		return false
	}
	return app.IsPending(args[0].String())
}

func jsClear(js.Value, []js.Value) any {
	app := current()
	if app == nil {
		return 0
	}
	n, err := app.Clear()
	if err != nil {
		return jsonError(err.Error())
	}
	return n
}

func jsSync(js.Value, []js.Value) any {
	app := current()
	if app == nil {
		return rejected("not started")
	}
	return promise(func() (any, error) {
		data, err := json.Marshal(app.Sync(context.Background()))
		return string(data), err
	})
}

func jsStatus(js.Value, []js.Value) any {
	app := current()
	if app == nil {
		return jsonError("not started")
	}
	return app.StatusJSON()
}

// promise runs fn off the event loop; blocking network calls inside a
// js.FuncOf callback would deadlock the runtime.
func promise(fn func() (any, error)) js.Value {
	var handler js.Func
	handler = js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		go func() {
			defer handler.Release()
			v, err := fn()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	return js.Global().Get("Promise").New(handler)
}

func rejected(msg string) js.Value {
	return js.Global().Get("Promise").Call("reject", js.Global().Get("Error").New(msg))
}

func notifyPage(n notify.Notification) {
	fn := js.Global().Get("reviewsyncNotify")
	if fn.Type() != js.TypeFunction {
		return
	}
	fn.Invoke(string(n.Kind), n.Message, n.Count)
}
