package forkexec

import (
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// writeIDMaps writes User ID and Group ID mappings for the user namespace
// of the child, called from the parent while the child waits
func writeIDMaps(r *Runner, pid int) error {
	var uidMappings, gidMappings, setGroups []byte
	pidStr := strconv.Itoa(pid)

	if r.UIDMappings == nil {
		uidMappings = []byte("0 " + strconv.Itoa(unix.Geteuid()) + " 1")
	} else {
		uidMappings = formatIDMappings(r.UIDMappings)
	}
	if err := writeFile("/proc/"+pidStr+"/uid_map", uidMappings); err != nil {
		return err
	}

	if r.GIDMappings == nil || !r.GIDMappingsEnableSetgroups {
		setGroups = setGIDDeny
	} else {
		setGroups = setGIDAllow
	}
	if err := writeFile("/proc/"+pidStr+"/setgroups", setGroups); err != nil {
		return err
	}

	if r.GIDMappings == nil {
		gidMappings = []byte("0 " + strconv.Itoa(unix.Getegid()) + " 1")
	} else {
		gidMappings = formatIDMappings(r.GIDMappings)
	}
	if err := writeFile("/proc/"+pidStr+"/gid_map", gidMappings); err != nil {
		return err
	}
	return nil
}

func formatIDMappings(idMap []syscall.SysProcIDMap) []byte {
	var data []byte
	for _, im := range idMap {
		data = strconv.AppendInt(data, int64(im.ContainerID), 10)
		data = append(data, ' ')
		data = strconv.AppendInt(data, int64(im.HostID), 10)
		data = append(data, ' ')
		data = strconv.AppendInt(data, int64(im.Size), 10)
		data = append(data, '\n')
	}
	return data
}

// writeFile writes a proc file in a single write, as required by the id maps
func writeFile(path string, content []byte) error {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return &os.PathError{Op: "open", Path: path, Err: err}
	}
	defer unix.Close(fd)
	if _, err := unix.Write(fd, content); err != nil {
		return &os.PathError{Op: "write", Path: path, Err: err}
	}
	return nil
}
