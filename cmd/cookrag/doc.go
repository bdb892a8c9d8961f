// cookrag 命令行入口：HTTP 服务、交互式问答和运维子命令。
package main
