package services

import (
	"sync"
	"time"
)

// Effect 一条离散通知：要么定时自动消失，要么等待玩家确认。
// 消失后可以带一个后续回调，用来串联下一步协调器调用
type Effect struct {
	Key        string
	Kind       string
	Message    string
	RequireAck bool
	Duration   time.Duration // 自动消失延迟，RequireAck为true时忽略
	OnDismiss  func()
}

// EffectPresenter 效果呈现接口，由渲染层实现
type EffectPresenter interface {
	ShowEffect(e *Effect)
	HideEffect(e *Effect)
	ShowIndicator(message string)
	HideIndicator()
}

// EffectScheduler 离散通知的先进先出调度器。保证同一时刻至多一条
// 离散效果可见、队列按入队顺序投递；持续指示器优先级更低，
// 队列非空或有效果在展示时被压制
type EffectScheduler struct {
	presenter       EffectPresenter
	defaultDuration time.Duration

	mutex          sync.Mutex
	queue          []*Effect
	current        *Effect
	indicator      string
	indicatorShown bool
	timer          *time.Timer
}

// NewEffectScheduler 创建效果调度器实例
func NewEffectScheduler(presenter EffectPresenter, defaultDuration time.Duration) *EffectScheduler {
	return &EffectScheduler{
		presenter:       presenter,
		defaultDuration: defaultDuration,
	}
}

// Enqueue 入队一条离散效果，空闲时立即展示
func (es *EffectScheduler) Enqueue(e *Effect) {
	es.mutex.Lock()
	if es.current != nil {
		es.queue = append(es.queue, e)
		es.mutex.Unlock()
		return
	}
	es.current = e
	hideIndicator := es.indicatorShown
	es.indicatorShown = false
	es.mutex.Unlock()

	if hideIndicator {
		es.presenter.HideIndicator()
	}
	es.present(e)
}

// Acknowledge 玩家确认当前效果，提前结束展示
func (es *EffectScheduler) Acknowledge() {
	es.mutex.Lock()
	cur := es.current
	es.mutex.Unlock()
	if cur != nil {
		es.dismiss(cur)
	}
}

// SetIndicator 设置持续指示器文案（例如"对方决定中"）。
// 只有在没有离散效果排队时才真正展示
func (es *EffectScheduler) SetIndicator(message string) {
	es.mutex.Lock()
	es.indicator = message
	show := es.current == nil && len(es.queue) == 0 && !es.indicatorShown
	if show {
		es.indicatorShown = true
	}
	es.mutex.Unlock()

	if show {
		es.presenter.ShowIndicator(message)
	}
}

// ClearIndicator 清除持续指示器
func (es *EffectScheduler) ClearIndicator() {
	es.mutex.Lock()
	es.indicator = ""
	hide := es.indicatorShown
	es.indicatorShown = false
	es.mutex.Unlock()

	if hide {
		es.presenter.HideIndicator()
	}
}

// Busy 当前是否有离散效果在展示或排队
func (es *EffectScheduler) Busy() bool {
	es.mutex.Lock()
	defer es.mutex.Unlock()
	return es.current != nil || len(es.queue) > 0
}

// present 展示效果并按需挂定时消失
func (es *EffectScheduler) present(e *Effect) {
	es.presenter.ShowEffect(e)

	if e.RequireAck {
		return
	}
	d := e.Duration
	if d <= 0 {
		d = es.defaultDuration
	}
	es.mutex.Lock()
	es.timer = time.AfterFunc(d, func() { es.dismiss(e) })
	es.mutex.Unlock()
}

// dismiss 结束一条效果的展示：先执行后续回调，再放行队列中的下一条；
// 队列排空且有指示器等待时恢复指示器
func (es *EffectScheduler) dismiss(e *Effect) {
	es.mutex.Lock()
	if es.current != e {
		// 已被别的路径结束（确认与定时器赛跑时只生效一次）
		es.mutex.Unlock()
		return
	}
	if es.timer != nil {
		es.timer.Stop()
		es.timer = nil
	}
	es.current = nil

	var next *Effect
	if len(es.queue) > 0 {
		next = es.queue[0]
		es.queue = es.queue[1:]
		es.current = next
	}
	showIndicator := next == nil && es.indicator != "" && !es.indicatorShown
	indicator := es.indicator
	if showIndicator {
		es.indicatorShown = true
	}
	es.mutex.Unlock()

	es.presenter.HideEffect(e)
	if e.OnDismiss != nil {
		e.OnDismiss()
	}

	if next != nil {
		es.present(next)
		return
	}
	if showIndicator {
		// 后续回调可能刚刚入队了新效果，展示前再确认一次
		es.mutex.Lock()
		stillIdle := es.current == nil && es.indicatorShown
		es.mutex.Unlock()
		if stillIdle {
			es.presenter.ShowIndicator(indicator)
		}
	}
}
