package cache

// Observer 接收缓存操作事件，用于接入指标系统。所有方法都应快速返回。
type Observer interface {
	OnGet(hit bool)
	OnSet()
	OnTouch(extended bool)
	OnDelete()
	// OnExpire 在过期条目被删除时调用，n 为本次删除数量。
	OnExpire(n int)
}

type nopObserver struct{}

func (nopObserver) OnGet(bool)   {}
func (nopObserver) OnSet()       {}
func (nopObserver) OnTouch(bool) {}
func (nopObserver) OnDelete()    {}
func (nopObserver) OnExpire(int) {}
