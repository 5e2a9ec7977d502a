package services

import (
	"log"
	"sync"

	"github.com/qianlnk/wolfchallenge/models"
)

// 乐观并发下单次事务的最大重试次数
const maxTxRetries = 8

// RoomStore 房间记录存储契约：原子的读-校验-写事务加上全量快照订阅。
// 不承诺与任何具体存储产品的字节级兼容，只承诺这个抽象契约。
type RoomStore interface {
	// Get 读取房间记录的副本
	Get(roomID string) (*models.Room, error)
	// Create 写入新房间记录，同房间码后写覆盖先写
	Create(room *models.Room) *models.Room
	// Transact 原子地执行读-改-写：fn收到记录副本，返回错误则整体放弃；
	// 与并发写入者冲突时在内部重试，重试耗尽返回ErrTxConflict
	Transact(roomID string, fn func(*models.Room) error) (*models.Room, error)
	// Subscribe 订阅房间的每次提交，回调收到全量快照副本，返回取消函数
	Subscribe(roomID string, onSnapshot func(*models.Room)) func()
	// ListRooms 返回所有房间记录的副本
	ListRooms() []*models.Room
}

// subscription 单个订阅者的投递信箱，容量为1：
// 订阅者处理不过来时只保留最新快照，中间状态允许被折叠跳过
type subscription struct {
	ch   chan *models.Room
	done chan struct{}
}

func (s *subscription) push(snapshot *models.Room) {
	for {
		select {
		case s.ch <- snapshot:
			return
		default:
		}
		// 信箱已满，丢弃旧快照给最新的让位
		select {
		case <-s.ch:
		default:
		}
	}
}

// MemoryRoomStore 内存实现的房间存储
type MemoryRoomStore struct {
	rooms     map[string]*models.Room
	subs      map[string]map[int64]*subscription
	nextSubID int64
	mutex     sync.Mutex
}

// NewMemoryRoomStore 创建内存房间存储实例
func NewMemoryRoomStore() *MemoryRoomStore {
	return &MemoryRoomStore{
		rooms: make(map[string]*models.Room),
		subs:  make(map[string]map[int64]*subscription),
	}
}

// Get 读取房间记录的副本
func (s *MemoryRoomStore) Get(roomID string) (*models.Room, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	room, exists := s.rooms[roomID]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return room.Clone(), nil
}

// Create 写入新房间记录。同房间码的再次创建直接覆盖（后写胜出），
// 6位房间码的碰撞概率被当作已知的小概率风险，不做额外防御
func (s *MemoryRoomStore) Create(room *models.Room) *models.Room {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.rooms[room.ID]; exists {
		log.Printf("[存储] 房间码 %s 已存在，记录被覆盖", room.ID)
	}

	stored := room.Clone()
	stored.Version = 1
	s.rooms[room.ID] = stored

	s.notifyLocked(room.ID, stored)
	return stored.Clone()
}

// Transact 原子地执行读-改-写事务
func (s *MemoryRoomStore) Transact(roomID string, fn func(*models.Room) error) (*models.Room, error) {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		s.mutex.Lock()
		current, exists := s.rooms[roomID]
		if !exists {
			s.mutex.Unlock()
			return nil, ErrRoomNotFound
		}
		base := current.Version
		working := current.Clone()
		s.mutex.Unlock()

		// 锁外执行业务校验和变更，提交时再核对版本号
		if err := fn(working); err != nil {
			return nil, err
		}

		s.mutex.Lock()
		current, exists = s.rooms[roomID]
		if !exists {
			s.mutex.Unlock()
			return nil, ErrRoomNotFound
		}
		if current.Version != base {
			// 其他写入者抢先提交，基于新状态重来
			s.mutex.Unlock()
			continue
		}
		working.Version = base + 1
		s.rooms[roomID] = working
		s.notifyLocked(roomID, working)
		s.mutex.Unlock()

		return working.Clone(), nil
	}

	log.Printf("[存储] 房间 %s 的事务重试次数耗尽", roomID)
	return nil, ErrTxConflict
}

// Subscribe 订阅房间快照流。订阅建立时立即投递当前状态，
// 之后每次提交都会投递；单房间内投递顺序与提交顺序一致
func (s *MemoryRoomStore) Subscribe(roomID string, onSnapshot func(*models.Room)) func() {
	sub := &subscription{
		ch:   make(chan *models.Room, 1),
		done: make(chan struct{}),
	}

	s.mutex.Lock()
	id := s.nextSubID
	s.nextSubID++
	if s.subs[roomID] == nil {
		s.subs[roomID] = make(map[int64]*subscription)
	}
	s.subs[roomID][id] = sub
	if room, exists := s.rooms[roomID]; exists {
		sub.push(room.Clone())
	}
	s.mutex.Unlock()

	go func() {
		for {
			select {
			case snapshot := <-sub.ch:
				onSnapshot(snapshot)
			case <-sub.done:
				return
			}
		}
	}()

	return func() {
		s.mutex.Lock()
		if subs, exists := s.subs[roomID]; exists {
			delete(subs, id)
			if len(subs) == 0 {
				delete(s.subs, roomID)
			}
		}
		s.mutex.Unlock()
		close(sub.done)
	}
}

// ListRooms 返回所有房间记录的副本
func (s *MemoryRoomStore) ListRooms() []*models.Room {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rooms := make([]*models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room.Clone())
	}
	return rooms
}

// notifyLocked 向房间的所有订阅者投递快照，调用方必须持有s.mutex
func (s *MemoryRoomStore) notifyLocked(roomID string, room *models.Room) {
	for _, sub := range s.subs[roomID] {
		sub.push(room.Clone())
	}
}
