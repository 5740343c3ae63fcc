package main

import (
	"fmt"
	"os"
	"strconv"
)

// ownerSpec 产物属主
type ownerSpec struct {
	uid int
	gid int
}

// resolveOwner picks the chown target: flags win over config, config
// wins over the HOST_UID/HOST_GID environment. Returns nil when the
// fix-up is not requested or no usable uid/gid exists.
func resolveOwner() *ownerSpec {
	if !postChown && !conf.Chown.Enabled {
		return nil
	}
	uid, gid := ownerUID, ownerGID
	if uid < 0 && conf.Chown.UID > 0 {
		uid = conf.Chown.UID
	}
	if gid < 0 && conf.Chown.GID > 0 {
		gid = conf.Chown.GID
	}
	if uid < 0 {
		uid = intFromEnv("HOST_UID")
	}
	if gid < 0 {
		gid = intFromEnv("HOST_GID")
	}
	if uid < 0 || gid < 0 {
		log.Warn("post-chown requested but HOST_UID/HOST_GID not provided, skipping")
		return nil
	}
	return &ownerSpec{uid: uid, gid: gid}
}

func intFromEnv(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

// chownArtifacts 修改两个产物的属主, 尽力而为
func chownArtifacts(res ConversionResult, owner ownerSpec) error {
	for _, path := range []string{res.GeoJSON, res.PMTiles} {
		if path == "" {
			continue
		}
		if err := os.Chown(path, owner.uid, owner.gid); err != nil {
			return fmt.Errorf("chown %s to %d:%d: %w", path, owner.uid, owner.gid, err)
		}
	}
	return nil
}
