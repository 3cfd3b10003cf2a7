package dlock

import (
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const lockRoot = "/supplyboost/locks"

// Conn 建立 ZooKeeper 会话。
func Conn(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	return conn, nil
}

// Lock 是按资源 ID 串行化临界区的分布式锁。
// 经典的临时顺序节点方案：最小序号者持锁，其余各自监听前驱。
type Lock struct {
	conn     *zk.Conn
	path     string
	lockNode string
}

// New 为 resourceID（如订单号）创建一把锁，并确保父节点存在。
func New(conn *zk.Conn, resourceID string) (*Lock, error) {
	if err := ensurePath(conn, lockRoot); err != nil {
		return nil, err
	}
	path := lockRoot + "/" + resourceID
	if err := ensurePath(conn, path); err != nil {
		return nil, err
	}
	return &Lock{conn: conn, path: path}, nil
}

func ensurePath(conn *zk.Conn, path string) error {
	acc := ""
	for _, part := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		acc += "/" + part
		_, err := conn.Create(acc, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return errors.Wrapf(err, "create node %s", acc)
		}
	}
	return nil
}

// Lock 阻塞获取锁，最多等待 wait。
func (l *Lock) Lock(wait time.Duration) error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "create sequential node")
	}
	l.lockNode = nodePath
	deadline := time.Now().Add(wait)

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return errors.Wrap(err, "list lock children")
		}
		sort.Strings(children)

		myNode := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNode == children[0] {
			return nil
		}

		prev := -1
		for i, child := range children {
			if child == myNode {
				prev = i - 1
				break
			}
		}
		if prev < 0 {
			return errors.New("own lock node missing from children")
		}

		_, _, eventChan, err := l.conn.ExistsW(l.path + "/" + children[prev])
		if err != nil {
			if err == zk.ErrNoNode {
				continue // 前驱刚好释放了，重新竞争
			}
			return errors.Wrap(err, "watch previous node")
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(time.Until(deadline)):
			l.release()
			return errors.Errorf("timed out waiting for lock on %s", l.path)
		}
	}
}

// Unlock 释放锁；重复释放是 no-op。
func (l *Lock) Unlock() error {
	if l.lockNode == "" {
		return nil
	}
	return l.release()
}

func (l *Lock) release() error {
	err := l.conn.Delete(l.lockNode, -1)
	l.lockNode = ""
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "delete lock node")
	}
	return nil
}
